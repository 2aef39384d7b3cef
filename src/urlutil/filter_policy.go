package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// ExtensionFamily groups file extensions rejected by fileExtensionFilters.
type ExtensionFamily string

const (
	FamilyArchives ExtensionFamily = "archives"
	FamilyImages   ExtensionFamily = "images"
	FamilyAudio    ExtensionFamily = "audio"
	FamilyVideo    ExtensionFamily = "video"
	FamilyOffice   ExtensionFamily = "office"
	FamilyOther    ExtensionFamily = "other" // css + js
)

var extensionsByFamily = map[ExtensionFamily][]string{
	FamilyArchives: {".zip", ".tar", ".gz", ".rar", ".7z", ".bz2"},
	FamilyImages:   {".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg", ".webp", ".ico"},
	FamilyAudio:    {".mp3", ".wav", ".ogg", ".flac", ".m4a"},
	FamilyVideo:    {".mp4", ".avi", ".mov", ".mkv", ".webm"},
	FamilyOffice:   {".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".pdf"},
	FamilyOther:    {".css", ".js"},
}

// FilterConfig holds the rule set of spec §4.2. An empty BlockedDomains,
// AllowedDomains or CustomFilters never rejects; the other fields fall
// back to the defaults noted on them.
type FilterConfig struct {
	// AllowedSchemes defaults to {http, https} when empty.
	AllowedSchemes []string
	// MaxURLLength defaults to 2048 when zero.
	MaxURLLength int
	BlockedDomains []string
	AllowedDomains []string
	// EnabledFamilies selects which fileExtensionFilters families reject
	// a URL. Empty means all are enabled, matching spec's default
	// `{all families: true}`.
	EnabledFamilies []ExtensionFamily
	CustomFilters   []*regexp.Regexp
}

// FilterVerdict is the outcome of Filter.Decide.
type FilterVerdict struct {
	Follow bool
	Reason string
}

// Filter applies the ordered rule list of spec §4.2 to a canonical URL.
type Filter struct {
	cfg            FilterConfig
	allowedSchemes map[string]bool
	enabledFamilies map[ExtensionFamily]bool
}

// NewFilter builds a Filter from cfg, applying spec defaults for unset
// fields.
func NewFilter(cfg FilterConfig) *Filter {
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = 2048
	}
	schemes := cfg.AllowedSchemes
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	allowedSchemes := make(map[string]bool, len(schemes))
	for _, s := range schemes {
		allowedSchemes[strings.ToLower(s)] = true
	}

	families := cfg.EnabledFamilies
	if len(families) == 0 {
		families = []ExtensionFamily{FamilyArchives, FamilyImages, FamilyAudio, FamilyVideo, FamilyOffice, FamilyOther}
	}
	enabled := make(map[ExtensionFamily]bool, len(families))
	for _, f := range families {
		enabled[f] = true
	}

	return &Filter{cfg: cfg, allowedSchemes: allowedSchemes, enabledFamilies: enabled}
}

// Decide applies the first-reject-wins rule chain of spec §4.2 to a
// canonical URL string. Decide is pure: the same input always yields the
// same verdict.
func (f *Filter) Decide(canonical string) FilterVerdict {
	parsed, err := url.Parse(canonical)
	if err != nil {
		return FilterVerdict{Follow: false, Reason: "Malformed"}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !f.allowedSchemes[scheme] {
		return FilterVerdict{Follow: false, Reason: "Scheme"}
	}

	if len(canonical) > f.cfg.MaxURLLength {
		return FilterVerdict{Follow: false, Reason: "URL length"}
	}

	host := parsed.Hostname()
	if host == "" {
		return FilterVerdict{Follow: false, Reason: "Malformed"}
	}

	if domainListMatches(host, f.cfg.BlockedDomains) {
		return FilterVerdict{Follow: false, Reason: "blocked"}
	}

	if len(f.cfg.AllowedDomains) > 0 && !domainListMatches(host, f.cfg.AllowedDomains) {
		return FilterVerdict{Follow: false, Reason: "allowlist"}
	}

	if family, ok := matchedExtensionFamily(parsed.Path, f.enabledFamilies); ok {
		return FilterVerdict{Follow: false, Reason: string(family)}
	}

	for _, re := range f.cfg.CustomFilters {
		if re.MatchString(canonical) {
			return FilterVerdict{Follow: false, Reason: "custom"}
		}
	}

	return FilterVerdict{Follow: true}
}

// domainListMatches reports whether host matches any entry in domains by
// suffix on a label boundary: the host equals the entry or is a subdomain
// of it, so "blog.example.co.uk" matches a configured "example.co.uk"
// while a sibling such as "shop.example.co.uk" does not match
// "blog.example.co.uk".
func domainListMatches(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func matchedExtensionFamily(path string, enabled map[ExtensionFamily]bool) (ExtensionFamily, bool) {
	lowerPath := strings.ToLower(path)
	for family, exts := range extensionsByFamily {
		if !enabled[family] {
			continue
		}
		for _, ext := range exts {
			if strings.HasSuffix(lowerPath, ext) {
				return family, true
			}
		}
	}
	return "", false
}
