package auth

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies decides whether forwarding headers on a request can be
// believed.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies parses IPs and CIDRs. Invalid entries are returned
// separately so callers can log them.
func ParseTrustedProxies(values []string) (TrustedProxies, []string) {
	var (
		trusted TrustedProxies
		invalid []string
	)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				invalid = append(invalid, v)
				continue
			}
			trusted = append(trusted, p.Masked())
			continue
		}
		addr, ok := parseAddr(v)
		if !ok {
			invalid = append(invalid, v)
			continue
		}
		trusted = append(trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return trusted, invalid
}

func (t TrustedProxies) contains(addr netip.Addr) bool {
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address of the client that sent r. Forwarded,
// X-Forwarded-For and X-Real-IP are honored only when the direct peer is a
// trusted proxy; the rightmost untrusted hop wins.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if len(t) == 0 {
		return host
	}
	peer, ok := parseAddr(host)
	if !ok || !t.contains(peer) {
		return host
	}

	if ip := t.rightmostUntrusted(forwardedFor(r.Header.Get("Forwarded"))); ip != "" {
		return ip
	}
	if ip := t.rightmostUntrusted(splitList(r.Header.Get("X-Forwarded-For"))); ip != "" {
		return ip
	}
	if addr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return addr.String()
	}
	return host
}

func (t TrustedProxies) rightmostUntrusted(hops []string) string {
	var first string
	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := parseAddr(hops[i])
		if !ok {
			continue
		}
		if !t.contains(addr) {
			return addr.String()
		}
		first = addr.String()
	}
	return first
}

// forwardedFor extracts the for= values of an RFC 7239 Forwarded header.
func forwardedFor(header string) []string {
	var hops []string
	for _, element := range splitList(header) {
		for _, pair := range strings.Split(element, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || !strings.EqualFold(key, "for") {
				continue
			}
			value = strings.Trim(value, `"`)
			if strings.HasPrefix(value, "[") {
				if end := strings.IndexByte(value, ']'); end != -1 {
					value = value[1:end]
				}
			} else if h, _, err := net.SplitHostPort(value); err == nil {
				value = h
			}
			hops = append(hops, value)
		}
	}
	return hops
}

func splitList(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseAddr(v string) (netip.Addr, bool) {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, '%'); i != -1 {
		v = v[:i]
	}
	addr, err := netip.ParseAddr(v)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
