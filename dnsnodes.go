// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/netip"

	"github.com/bassosimone/dnscodec"
	"github.com/miekg/dns"
)

// dnsQueryTypeTable maps the handful of record type names a node
// specification reasonably spells out to their [dns.Type] value.
var dnsQueryTypeTable = map[string]uint16{
	"A":     dns.TypeA,
	"AAAA":  dns.TypeAAAA,
	"CNAME": dns.TypeCNAME,
	"MX":    dns.TypeMX,
	"NS":    dns.TypeNS,
	"PTR":   dns.TypePTR,
	"TXT":   dns.TypeTXT,
}

// dnsResponseRecords is the subset of [dnscodec.Response]'s accessor
// methods a diagnostic datagram needs for an A query, the one record type
// example_dnsoverudp_test.go/example_dnsovertls_test.go/
// example_dnsoverhttps_test.go exercise against a live resolver.
type dnsResponseRecords interface {
	RecordsA() ([]string, error)
}

// formatDNSResponse renders resp as one line of text per queried record.
// A queries use [dnsResponseRecords.RecordsA]; every other queried type
// falls back to the response's default formatting, since this module does
// not otherwise depend on dnscodec's per-type accessors.
func formatDNSResponse(resp dnsResponseRecords, qtype uint16) (Datagram, error) {
	if qtype != dns.TypeA {
		return Datagram(fmt.Sprintf("%+v\n", resp)), nil
	}
	records, err := resp.RecordsA()
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, r := range records {
		out = append(out, []byte(r+"\n")...)
	}
	return Datagram(out), nil
}

// oneShotDatagramSource yields d exactly once, then [io.EOF] forever
// after, the shape a single DNS exchange's result naturally takes.
type oneShotDatagramSource struct {
	d    Datagram
	done bool
}

func (s *oneShotDatagramSource) ReadDatagram(ctx context.Context) (Datagram, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return s.d, nil
}

// dnsQueryNode resolves name with record type qtype over a freshly
// established transport, per spec.md §4.9's dns-udp/dns-tcp/dns-tls/
// dns-https entries, and exposes the answer as a one-shot datagram
// source. Each exchange* method performs the whole connect→query→close sequence, one per
// protocol, grounded on example_dnsoverudp_test.go/example_dnsovertls_test.go/
// example_dnsoverhttps_test.go's pipeline compositions.
type dnsQueryNode struct {
	address  netip.AddrPort
	url      string
	name     string
	qtype    uint16
	protocol string // "udp", "tcp", "tls", "https"
}

func (n *dnsQueryNode) Run(ctx context.Context, rc *RunContext, smc *ServerModeContext) (Bipipe, error) {
	query := dnscodec.NewQuery(n.name, n.qtype)

	var (
		resp dnsResponseRecords
		err  error
	)
	switch n.protocol {
	case "udp":
		resp, err = n.exchangeUDP(ctx, rc, query)
	case "tcp":
		resp, err = n.exchangeTCP(ctx, rc, query)
	case "tls":
		resp, err = n.exchangeTLS(ctx, rc, query)
	case "https":
		resp, err = n.exchangeHTTPS(ctx, rc, query)
	default:
		return Bipipe{}, fmt.Errorf("%w: unknown DNS protocol %q", ErrInternalInvariant, n.protocol)
	}
	if err != nil {
		return Bipipe{}, err
	}

	datagram, err := formatDNSResponse(resp, n.qtype)
	if err != nil {
		return Bipipe{}, err
	}
	return Bipipe{
		ReadFraming:    FramingDatagram,
		DatagramReader: &oneShotDatagramSource{d: datagram},
	}, nil
}

func (n *dnsQueryNode) exchangeUDP(ctx context.Context, rc *RunContext, query *dnscodec.Query) (dnsResponseRecords, error) {
	pipe := Compose5(
		NewEndpointFunc(n.address),
		NewConnectFunc(rc.Config, "udp", rc.Config.Logger),
		NewObserveConnFunc(rc.Config, rc.Config.Logger),
		NewCancelWatchFunc(),
		NewDNSOverUDPConnFunc(rc.Config, rc.Config.Logger),
	)
	conn, err := pipe.Call(ctx, Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Exchange(ctx, query)
}

func (n *dnsQueryNode) exchangeTCP(ctx context.Context, rc *RunContext, query *dnscodec.Query) (dnsResponseRecords, error) {
	pipe := Compose5(
		NewEndpointFunc(n.address),
		NewConnectFunc(rc.Config, "tcp", rc.Config.Logger),
		NewObserveConnFunc(rc.Config, rc.Config.Logger),
		NewCancelWatchFunc(),
		NewDNSOverTCPConnFunc(rc.Config, rc.Config.Logger),
	)
	conn, err := pipe.Call(ctx, Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Exchange(ctx, query)
}

func (n *dnsQueryNode) exchangeTLS(ctx context.Context, rc *RunContext, query *dnscodec.Query) (dnsResponseRecords, error) {
	tlsConfig := &tls.Config{ServerName: n.name, NextProtos: []string{"dot"}}
	pipe := Compose6(
		NewEndpointFunc(n.address),
		NewConnectFunc(rc.Config, "tcp", rc.Config.Logger),
		NewObserveConnFunc(rc.Config, rc.Config.Logger),
		NewCancelWatchFunc(),
		NewTLSHandshakeFunc(rc.Config, tlsConfig, rc.Config.Logger),
		NewDNSOverTLSConnFunc(rc.Config, rc.Config.Logger),
	)
	conn, err := pipe.Call(ctx, Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Exchange(ctx, query)
}

func (n *dnsQueryNode) exchangeHTTPS(ctx context.Context, rc *RunContext, query *dnscodec.Query) (dnsResponseRecords, error) {
	tlsConfig := &tls.Config{ServerName: n.name, NextProtos: []string{"h2", "http/1.1"}}
	pipe := Compose7(
		NewEndpointFunc(n.address),
		NewConnectFunc(rc.Config, "tcp", rc.Config.Logger),
		NewObserveConnFunc(rc.Config, rc.Config.Logger),
		NewCancelWatchFunc(),
		NewTLSHandshakeFunc(rc.Config, tlsConfig, rc.Config.Logger),
		NewHTTPConnFuncTLS(rc.Config, rc.Config.Logger),
		NewDNSOverHTTPSConnFunc(rc.Config, n.url, rc.Config.Logger),
	)
	conn, err := pipe.Call(ctx, Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Exchange(ctx, query)
}

func dnsQuerySchema(extra ...PropertyEntry) PropertySchema {
	entries := []PropertyEntry{
		{Name: "name", Kind: KindHostOrIP, Required: true, Help: "domain name to resolve"},
		{Name: "type", Kind: KindString, Required: false, Help: "record type: A, AAAA, CNAME, MX, NS, PTR, or TXT (default A)"},
	}
	entries = append(entries, extra...)
	return PropertySchema{Entries: entries}
}

func dnsQueryTypeFromProps(props *PropertyBag) (uint16, error) {
	v, ok := props.Get("type")
	if !ok {
		return dns.TypeA, nil
	}
	s, err := v.String()
	if err != nil {
		return 0, err
	}
	qtype, ok := dnsQueryTypeTable[s]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported DNS query type %q", ErrSchemaError, s)
	}
	return qtype, nil
}

// newDNSQueryNode builds a [*dnsQueryNode] from a dns-* class's parsed
// properties, per the schema [dnsQuerySchema] declares.
func newDNSQueryNode(protocol string) Factory {
	return func(id NodeID, props *PropertyBag) Node {
		q := &dnsQueryNode{protocol: protocol}
		if name, ok := props.Get("name"); ok {
			q.name, _ = name.HostOrIP()
		}
		q.qtype, _ = dnsQueryTypeFromProps(props)
		if addr, ok := props.Get("address"); ok {
			q.address, _ = addr.SocketAddr()
		}
		if url, ok := props.Get("url"); ok {
			q.url, _ = url.String()
		}
		return q
	}
}

func init() {
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"dns-udp"},
		HumanName: "DNS over UDP query",
		Schema: dnsQuerySchema(PropertyEntry{
			Name: "address", Kind: KindSocketAddr, Required: true, Help: "resolver address",
		}),
		New: newDNSQueryNode("udp"),
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"dns-tcp"},
		HumanName: "DNS over TCP query",
		Schema: dnsQuerySchema(PropertyEntry{
			Name: "address", Kind: KindSocketAddr, Required: true, Help: "resolver address",
		}),
		New: newDNSQueryNode("tcp"),
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"dns-tls"},
		HumanName: "DNS over TLS query",
		Schema: dnsQuerySchema(PropertyEntry{
			Name: "address", Kind: KindSocketAddr, Required: true, Help: "resolver address",
		}),
		New: newDNSQueryNode("tls"),
	})
	defaultRegistry.MustRegisterClass(&ClassDescriptor{
		Names:     []string{"dns-https"},
		HumanName: "DNS over HTTPS query",
		Schema: dnsQuerySchema(
			PropertyEntry{Name: "address", Kind: KindSocketAddr, Required: true, Help: "resolver address"},
			PropertyEntry{Name: "url", Kind: KindString, Required: true, Help: "DoH query URL"},
		),
		New: newDNSQueryNode("https"),
	})
}
