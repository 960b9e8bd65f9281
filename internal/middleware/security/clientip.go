package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPExtractor resolves the client address of a request. Forwarding headers are
// honoured only when the direct peer is a trusted proxy.
type IPExtractor struct {
	trustedProxies []netip.Prefix
}

// NewIPExtractor trusts loopback and private networks.
func NewIPExtractor() *IPExtractor {
	return &IPExtractor{
		trustedProxies: []netip.Prefix{
			netip.MustParsePrefix("127.0.0.0/8"),
			netip.MustParsePrefix("::1/128"),
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("172.16.0.0/12"),
			netip.MustParsePrefix("192.168.0.0/16"),
		},
	}
}

// AddTrustedProxy adds a trusted proxy network
func (e *IPExtractor) AddTrustedProxy(cidr string) error {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	e.trustedProxies = append(e.trustedProxies, prefix)
	return nil
}

// ClientIP returns the first valid X-Forwarded-For or X-Real-IP address when
// the peer is trusted, otherwise the peer address.
func (e *IPExtractor) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	addr, err := netip.ParseAddr(directIP)
	if err != nil || !e.isTrustedProxy(addr.Unmap()) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if client, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return client.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if client, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return client.String()
		}
	}
	return directIP
}

func (e *IPExtractor) isTrustedProxy(addr netip.Addr) bool {
	for _, prefix := range e.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
