package sitemapper

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL parses raw and returns its canonical form: scheme and host
// lowercased, fragment dropped, query and path case preserved. A path of
// just "/" is treated as equivalent to an empty path. The URL must be an
// absolute http or https URL.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("URL %q is not absolute", raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("URL %q is not http or https", raw)
	}
	return normalize(u), nil
}

// Resolve resolves ref against the page URL base and returns the
// normalized absolute result. The second return is false when ref is not a
// followable link: unparsable, or a scheme other than http/https (mailto:,
// javascript:, tel:, data: and friends).
func Resolve(base *url.URL, ref string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	switch parsed.Scheme {
	case "", "http", "https":
	default:
		return "", false
	}
	abs := base.ResolveReference(parsed)
	if abs.Host == "" {
		return "", false
	}
	return normalize(abs), true
}

func normalize(u *url.URL) string {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}
