package research

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// activeFetchClient is the client executeWebFetch dials through. It
// defaults to the SSRF-safe transport; tests in this package swap it for a
// plain client so they can point web_fetch at an httptest server, which
// necessarily listens on loopback.
var activeFetchClient = newSSRFSafeClient()

func fetchClient() *http.Client {
	return activeFetchClient
}

// cgnatBlock is the shared carrier-grade NAT range (100.64.0.0/10), not
// covered by net.IP's own IsPrivate.
var cgnatBlock = mustParseCIDR("100.64.0.0/10")

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// isBlockedIP reports whether ip is a loopback, RFC1918, link-local,
// CGNAT, or IPv6 ULA/mapped-private address — anything a web_fetch target
// resolving to it would let the companion reach internal infrastructure
// instead of the public page the model asked for.
func isBlockedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	// net.IP.IsPrivate covers RFC1918 (10/8, 172.16/12, 192.168/16) and the
	// IPv6 ULA range fc00::/7, including through a v4-in-v6 mapping.
	if ip.IsPrivate() {
		return true
	}
	if v4 := ip.To4(); v4 != nil && cgnatBlock.Contains(v4) {
		return true
	}
	return false
}

// newSSRFSafeClient returns an http.Client whose transport resolves the
// target host itself and refuses to dial any address isBlockedIP flags,
// closing the gap between a DNS-based pre-check and the actual connection
// (DNS rebinding) the way pathguard.go closes the open/stat gap for files.
func newSSRFSafeClient() *http.Client {
	dialer := &net.Dialer{}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
			}
			var lastErr error
			for _, ip := range ips {
				if isBlockedIP(ip) {
					lastErr = fmt.Errorf("refusing to fetch %s: resolves to a private/reserved address (%s)", host, ip)
					continue
				}
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			if lastErr == nil {
				lastErr = fmt.Errorf("no resolvable address for %s", host)
			}
			return nil, lastErr
		},
		// Redirects are followed by the client's own CheckRedirect below,
		// not the transport, but each hop still dials through here, so a
		// redirect to a private address is rejected the same way.
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to disallowed scheme %q", req.URL.Scheme)
			}
			return nil
		},
	}
}

// validateFetchURL checks that the URL is non-empty and uses http or https.
// It does not inspect the host; the DialContext guard above is the check
// on the address once the host resolves.
func validateFetchURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("url must use http or https")
	}
	return nil
}
