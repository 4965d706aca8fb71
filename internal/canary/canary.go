// Package canary recognises deliberately fake credential-shaped values.
//
// Every canary planted in a served artifact must be verifiably fake: a value
// that can never be mistaken for (or collide with) a real secret, host or
// network. IsVerifiablyFake is the single predicate used for that check; it is
// pure, total and performs no I/O.
package canary

import (
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
)

// FakePrefixes are the fixed prefixes carried by every generated fake secret.
var FakePrefixes = []string{
	"sk-sundew-FAKE-",
	"whsec-sundew-FAKE-",
	"sundew-fake-jwt-",
}

// reservedPrefixes are the non-routable IPv4 ranges accepted as fake.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),      // RFC 1918
	netip.MustParsePrefix("172.16.0.0/12"),   // RFC 1918
	netip.MustParsePrefix("192.168.0.0/16"),  // RFC 1918
	netip.MustParsePrefix("127.0.0.0/8"),     // loopback
	netip.MustParsePrefix("192.0.2.0/24"),    // RFC 5737 TEST-NET-1
	netip.MustParsePrefix("198.51.100.0/24"), // RFC 5737 TEST-NET-2
	netip.MustParsePrefix("203.0.113.0/24"),  // RFC 5737 TEST-NET-3
}

// reservedDomains are the RFC 2606 / RFC 6761 names accepted as fake, either
// exactly or as a parent domain.
var reservedDomains = []string{
	"example.com",
	"example.org",
	"example.net",
	"example",
	"test",
	"invalid",
	"localhost",
}

// IsVerifiablyFake reports whether value is a recognised fake canary: a
// reserved IPv4 address, a reserved domain, a fake-prefixed token with
// alphanumeric filler, or a connection string pointing at a fake host.
func IsVerifiablyFake(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" || v != value {
		return false
	}

	if hasFakePrefix(v) {
		return isFakeToken(v)
	}
	if strings.Contains(v, "://") {
		return isFakeConnString(v)
	}
	if addr, err := netip.ParseAddr(v); err == nil {
		return isReservedAddr(addr)
	}
	return isReservedDomain(v)
}

func hasFakePrefix(v string) bool {
	for _, p := range FakePrefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}

// isFakeToken accepts a fake prefix followed by one or more alphanumeric
// groups separated by single hyphens.
func isFakeToken(v string) bool {
	for _, p := range FakePrefixes {
		if !strings.HasPrefix(v, p) {
			continue
		}
		filler := v[len(p):]
		if filler == "" {
			return false
		}
		for _, group := range strings.Split(filler, "-") {
			if group == "" || !isAlnum(group) {
				return false
			}
		}
		return true
	}
	return false
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

func isFakeConnString(v string) bool {
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return false
		}
	}
	return IsFakeHost(u.Hostname())
}

// IsFakeHost reports whether host (without port) is loopback, private,
// documentation-range or a reserved domain.
func IsFakeHost(host string) bool {
	if host == "" {
		return false
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return isReservedAddr(addr)
	}
	return isReservedDomain(host)
}

func isReservedAddr(addr netip.Addr) bool {
	if !addr.Is4() {
		return addr.IsLoopback()
	}
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func isReservedDomain(v string) bool {
	d := strings.ToLower(strings.TrimSuffix(v, "."))
	if !isHostname(d) {
		return false
	}
	for _, r := range reservedDomains {
		if d == r || strings.HasSuffix(d, "."+r) {
			return true
		}
	}
	return false
}

// isHostname checks label syntax only; it never resolves anything.
func isHostname(d string) bool {
	if d == "" || len(d) > 253 || net.ParseIP(d) != nil {
		return false
	}
	for _, label := range strings.Split(d, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if !(c == '-' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z') {
				return false
			}
		}
	}
	return true
}
