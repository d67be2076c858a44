package proxy

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseURI parses a pooled proxy entry. Both fetch modes go through it so a
// malformed entry fails the same way everywhere instead of silently
// disabling the proxy.
func ParseURI(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URI %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("invalid proxy URI %q: scheme must be http, https or socks5", raw)
	}
	if u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid proxy URI %q: missing host", raw)
	}
	return u, nil
}
