// Package urlutil canonicalizes and filters crawl-candidate URLs.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

// WWWHandling controls how a leading "www." host label is treated.
type WWWHandling string

const (
	WWWIgnore    WWWHandling = "ignore" // strip leading www.
	WWWPreserve  WWWHandling = "preserve"
	WWWPreferWWW WWWHandling = "prefer-www"
	WWWPreferNon WWWHandling = "prefer-non-www"
)

// ProtocolHandling controls scheme rewriting.
type ProtocolHandling string

const (
	ProtocolIgnore      ProtocolHandling = "ignore" // force https
	ProtocolPreserve    ProtocolHandling = "preserve"
	ProtocolPreferHTTPS ProtocolHandling = "prefer-https"
)

// TrailingSlashHandling controls trailing-slash normalization.
type TrailingSlashHandling string

const (
	TrailingSlashIgnore   TrailingSlashHandling = "ignore" // strip unless path is "/"
	TrailingSlashPreserve TrailingSlashHandling = "preserve"
)

// QueryParamHandling controls query string normalization.
type QueryParamHandling string

const (
	QueryIgnore   QueryParamHandling = "ignore" // drop query
	QuerySort     QueryParamHandling = "sort"
	QueryPreserve QueryParamHandling = "preserve"
)

// FragmentHandling controls fragment normalization.
type FragmentHandling string

const (
	FragmentIgnore   FragmentHandling = "ignore" // drop fragment
	FragmentPreserve FragmentHandling = "preserve"
)

// NormalizeConfig holds the policy knobs of spec §4.1. The zero value is
// not valid; use DefaultNormalizeConfig.
type NormalizeConfig struct {
	WWWHandling           WWWHandling
	ProtocolHandling      ProtocolHandling
	TrailingSlashHandling TrailingSlashHandling
	QueryParamHandling    QueryParamHandling
	FragmentHandling      FragmentHandling

	// AllowedSchemes additionally permits schemes normally rejected
	// outright (mailto, javascript, data, tel, ftp).
	AllowedSchemes map[string]bool

	// CollapseDuplicateSlashes collapses repeated "/" in the path.
	// Default false: keep behavior faithful to the raw URL.
	CollapseDuplicateSlashes bool
}

// DefaultNormalizeConfig is the default deduplication strategy of spec
// §4.1/§6 (normalizeUrlsForDeduplication): strip a leading "www.", force
// https, drop a trailing slash, drop the query string, and drop the
// fragment. This is the strategy that collapses the three seeds
// `http://www.Example.com/`, `https://example.com/?b=2&a=1`, and
// `https://example.com/?a=1&b=2#frag` to the single canonical URL
// `https://example.com/` — note the first seed has no query string at
// all, so QuerySort alone would leave it distinct from the other two;
// only dropping the query entirely collapses all three.
func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{
		WWWHandling:           WWWIgnore,
		ProtocolHandling:      ProtocolIgnore,
		TrailingSlashHandling: TrailingSlashIgnore,
		QueryParamHandling:    QueryIgnore,
		FragmentHandling:      FragmentIgnore,
	}
}

var rejectedSchemes = map[string]bool{
	"mailto":     true,
	"javascript": true,
	"data":       true,
	"tel":        true,
	"ftp":        true,
}

// Normalized is the canonicalization result of spec §4.1.
type Normalized struct {
	Original  string
	Canonical string
	Host      string
}

// MalformedURLError reports a URL that cannot be canonicalized.
type MalformedURLError struct {
	Input string
	Err   error
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed url %q: %v", e.Input, e.Err)
}

func (e *MalformedURLError) Unwrap() error { return e.Err }

// Normalize canonicalizes raw against the deterministic pipeline of
// spec §4.1. base, if non-nil, resolves a relative raw into an absolute
// URL before the rest of the pipeline runs.
func Normalize(raw string, base *url.URL, cfg NormalizeConfig) (Normalized, error) {
	if raw == "" {
		return Normalized{}, &MalformedURLError{Input: raw, Err: errors.New("empty URL")}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Normalized{}, &MalformedURLError{Input: raw, Err: err}
	}

	// Step 1: resolve against base.
	if base != nil && !parsed.IsAbs() {
		parsed = base.ResolveReference(parsed)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return Normalized{}, &MalformedURLError{Input: raw, Err: errors.New("missing scheme or host")}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if rejectedSchemes[scheme] && !cfg.AllowedSchemes[scheme] {
		return Normalized{}, &MalformedURLError{Input: raw, Err: fmt.Errorf("scheme %q not permitted", scheme)}
	}
	parsed.Scheme = scheme

	// Step 2: lowercase host, strip default ports.
	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	// Step 3: www handling.
	switch cfg.WWWHandling {
	case WWWIgnore:
		host = strings.TrimPrefix(host, "www.")
	case WWWPreferWWW:
		if !strings.HasPrefix(host, "www.") {
			host = "www." + host
		}
	case WWWPreferNon:
		host = strings.TrimPrefix(host, "www.")
	case WWWPreserve, "":
		// no-op
	}

	// Step 8 (host portion): IDN -> punycode.
	if asciiHost, err := idna.Lookup.ToASCII(host); err == nil {
		host = asciiHost
	}

	if port != "" {
		parsed.Host = host + ":" + port
	} else {
		parsed.Host = host
	}

	// Step 4: protocol handling.
	switch cfg.ProtocolHandling {
	case ProtocolIgnore, ProtocolPreferHTTPS:
		parsed.Scheme = "https"
	case ProtocolPreserve, "":
		// no-op
	}

	// Step 5: trailing slash handling.
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	if cfg.CollapseDuplicateSlashes {
		path = collapseSlashes(path)
	}
	if cfg.TrailingSlashHandling == TrailingSlashIgnore || cfg.TrailingSlashHandling == "" {
		if path != "/" && strings.HasSuffix(path, "/") {
			path = strings.TrimSuffix(path, "/")
		}
	}
	parsed.Path = decodeUnreserved(path)

	// Step 6: query param handling.
	switch cfg.QueryParamHandling {
	case QueryIgnore:
		parsed.RawQuery = ""
	case QuerySort:
		parsed.RawQuery = sortedQuery(parsed.Query())
	case QueryPreserve, "":
		// keep as-is
	}

	// Step 7: fragment handling.
	if cfg.FragmentHandling == FragmentIgnore || cfg.FragmentHandling == "" {
		parsed.Fragment = ""
	}

	canonical := parsed.String()
	return Normalized{Original: raw, Canonical: canonical, Host: parsed.Host}, nil
}

// sortedQuery serializes query parameters sorted by key, stable within key
// (net/url.Values.Encode already sorts by key and preserves value order).
func sortedQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return values.Encode()
}

func collapseSlashes(path string) string {
	var b strings.Builder
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// decodeUnreserved percent-decodes octets that map to unreserved
// characters (ALPHA / DIGIT / "-" / "." / "_" / "~"), leaving any other
// percent-escape untouched so re-encoding by net/url stays faithful.
func decodeUnreserved(path string) string {
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		if path[i] == '%' && i+2 < len(path) {
			if c, ok := hexByte(path[i+1], path[i+2]); ok && isUnreserved(c) {
				b.WriteByte(c)
				i += 2
				continue
			}
		}
		b.WriteByte(path[i])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

func hexByte(hi, lo byte) (byte, bool) {
	h, ok1 := hexVal(hi)
	l, ok2 := hexVal(lo)
	if !ok1 || !ok2 {
		return 0, false
	}
	return h<<4 | l, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
