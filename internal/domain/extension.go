package domain

import (
	"net/url"
	"regexp"
	"strings"
)

var pathExtPattern = regexp.MustCompile(`^\.[a-z0-9]+$`)

// queryExtKeys are the query parameters consulted when the path carries no extension
var queryExtKeys = map[string]struct{}{
	"type":   {},
	"format": {},
	"ext":    {},
}

// ResolveExtension extracts a lowercase extension with a leading dot from a URL.
// The final path segment is consulted first (2-6 characters including the dot),
// then the first type=, format= or ext= query parameter (1-5 characters).
// It returns "" when neither yields a plausible extension; it never panics on malformed input.
func ResolveExtension(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if ext := extensionFromPath(resolvablePath(raw)); ext != "" {
		return ext
	}
	return extensionFromQuery(raw)
}

// resolvablePath picks the path to inspect. An empty path or one ending in "/"
// falls back to the whole string without query and fragment, so a bare host
// such as https://www.partner.org resolves to its top-level domain.
func resolvablePath(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" && !strings.HasSuffix(u.Path, "/") {
		return u.Path
	}
	return stripQueryAndFragment(raw)
}

func extensionFromPath(p string) string {
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	segment := p[strings.LastIndex(p, "/")+1:]
	dot := strings.LastIndex(segment, ".")
	if dot < 0 {
		return ""
	}
	ext := strings.ToLower(segment[dot:])
	if len(ext) < 2 || len(ext) > 6 || !pathExtPattern.MatchString(ext) {
		return ""
	}
	return ext
}

func extensionFromQuery(raw string) string {
	q := strings.IndexByte(raw, '?')
	if q < 0 {
		return ""
	}
	query := raw[q+1:]
	if h := strings.IndexByte(query, '#'); h >= 0 {
		query = query[:h]
	}

	for _, pair := range strings.Split(query, "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		if _, ok := queryExtKeys[strings.ToLower(key)]; !ok {
			continue
		}
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
		value = strings.ToLower(value)
		if end := strings.IndexFunc(value, func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
		}); end >= 0 {
			value = value[:end]
		}
		if len(value) < 1 || len(value) > 5 {
			return ""
		}
		return "." + value
	}
	return ""
}

func stripQueryAndFragment(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
