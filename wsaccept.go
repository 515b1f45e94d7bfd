// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"crypto/sha1"
	"encoding/base64"
)

// webSocketGUID is the fixed GUID RFC 6455 §1.3 defines for computing the
// Sec-WebSocket-Accept response header.
const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ComputeWebSocketAcceptKey computes the Sec-WebSocket-Accept value for a
// client's Sec-WebSocket-Key header, per RFC 6455 §1.3 and spec.md §4.9's
// ws-server entry: concatenate the key and the fixed GUID, take the SHA-1
// digest, and base64-encode it.
//
// This is a pure function kept independent of gorilla/websocket, which
// computes the same value internally during its own handshake but does
// not expose it, so node classes that need to perform or verify the
// handshake by hand (server-side, against a non-gorilla client) can reuse
// this exact computation.
func ComputeWebSocketAcceptKey(clientKey string) string {
	h := sha1.New() //nolint:gosec // RFC 6455 mandates SHA-1 here, not a choice.
	h.Write([]byte(clientKey))
	h.Write([]byte(webSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
