package crawler

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jambudipa/spider/urlutil"
)

// hiddenInputNamePattern matches the hidden-input names spec §4.5 treats
// as carrying a follow-up URL: name="url", name="redirect", or
// name="next" (case-insensitive), as commonly seen on login/interstitial
// forms.
var hiddenInputNamePattern = regexp.MustCompile(`(?i)^(url|redirect|next)$`)

// ExtractedPage is what link extraction contributes to a fetched page:
// the title, any <meta name="..."> pairs, and the set of absolute,
// normalized, in-scheme links discovered on the page.
type ExtractedPage struct {
	Title string
	Meta  map[string]string
	Links []string
}

// ExtractPage parses an HTML document once with x/net/html and layers a
// goquery document over the resulting tree so link discovery can use the
// same CSS-selector scoping (RestrictCSS) that a caller would reach for
// when scraping (spec §4.5). baseURL resolves relative references. When
// ExtractFromInputs is set, hidden inputs whose name matches
// url|redirect|next (case-insensitive) additionally contribute their
// value as a discovered link.
func ExtractPage(body io.Reader, baseURL *url.URL, cfg Config) (ExtractedPage, error) {
	root, err := html.Parse(body)
	if err != nil {
		return ExtractedPage{}, err
	}

	doc := goquery.NewDocumentFromNode(root)

	page := ExtractedPage{
		Meta: make(map[string]string),
	}
	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		if name != "" {
			page.Meta[name] = content
		}
	})

	scopes := []*goquery.Selection{doc.Selection}
	if len(cfg.RestrictCSS) > 0 {
		scopes = scopes[:0]
		for _, sel := range cfg.RestrictCSS {
			doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
				scopes = append(scopes, s)
			})
		}
	}

	seen := make(map[string]bool)
	for _, scope := range scopes {
		for _, tag := range cfg.Tags {
			scope.Find(tag).Each(func(_ int, s *goquery.Selection) {
				for _, attr := range cfg.Attrs {
					val, ok := s.Attr(attr)
					if !ok || val == "" {
						continue
					}
					resolved, err := resolveLink(baseURL, val, cfg)
					if err != nil {
						continue
					}
					if !seen[resolved] {
						seen[resolved] = true
						page.Links = append(page.Links, resolved)
					}
				}
			})
		}
		if cfg.ExtractFromInputs {
			scope.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
				name, _ := s.Attr("name")
				if !hiddenInputNamePattern.MatchString(name) {
					return
				}
				val, ok := s.Attr("value")
				if !ok || val == "" {
					return
				}
				resolved, err := resolveLink(baseURL, val, cfg)
				if err != nil {
					return
				}
				if !seen[resolved] {
					seen[resolved] = true
					page.Links = append(page.Links, resolved)
				}
			})
		}
	}

	return page, nil
}

// resolveLink resolves ref against base, rejects non-HTTP schemes, and
// canonicalizes it through the configured normalizer so extracted links
// match frontier admission exactly.
func resolveLink(base *url.URL, ref string, cfg Config) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	resolved := base.ResolveReference(refURL)
	resolvedStr := resolved.String()

	if !urlutil.IsHTTPScheme(resolvedStr) {
		return "", errNotHTTPScheme
	}

	n, err := urlutil.Normalize(resolvedStr, base, cfg.Normalize)
	if err != nil {
		return "", err
	}
	return n.Canonical, nil
}

var errNotHTTPScheme = &nonHTTPSchemeError{}

type nonHTTPSchemeError struct{}

func (*nonHTTPSchemeError) Error() string { return "not an http(s) scheme" }
