// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"fmt"
	"net/netip"
)

// addrProperty is the common "address" property shape shared by every
// node class that dials or listens on a socket address (tcp, udp,
// tcp-listen, udp-listen). Schema validation already resolved it to a
// [netip.AddrPort] at parse time, per value.go's KindSocketAddr; resolve
// exists as the single place a future node could add deferred/live
// resolution without changing every call site.
type addrProperty struct {
	addr netip.AddrPort
}

func newAddrProperty(props *PropertyBag) addrProperty {
	v, ok := props.Get("address")
	if !ok {
		return addrProperty{}
	}
	addr, _ := v.SocketAddr()
	return addrProperty{addr: addr}
}

func (a addrProperty) resolve(ctx context.Context, rc *RunContext) (netip.AddrPort, error) {
	if !a.addr.IsValid() {
		return netip.AddrPort{}, fmt.Errorf("%w: missing or invalid address", ErrSchemaError)
	}
	return a.addr, nil
}

// addrSchema is the one-property schema every socket-address node class
// shares, parameterized only by the help text describing which end of
// the connection it names.
func addrSchema(help string) PropertySchema {
	return PropertySchema{
		Entries: []PropertyEntry{
			{Name: "address", Kind: KindSocketAddr, Required: true, Help: help},
		},
	}
}
