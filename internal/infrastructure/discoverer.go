package infrastructure

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"github.com/linkgrab/linkgrab/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

var skippedSchemes = []string{"mailto:", "tel:", "javascript:"}

// HTMLDiscoverer fetches a page and extracts downloadable resources from its markup
type HTMLDiscoverer struct {
	client     *http.Client
	userAgent  string
	config     *domain.DiscoveryConfig
	table      *domain.CategoryTable
	logger     *zap.Logger
	selector   string
	attrsByTag map[string][]string
	linkRels   map[string]struct{}
	feedExts   map[string]struct{}
}

// NewHTMLDiscoverer creates a discoverer. client should come from NewPageClient.
func NewHTMLDiscoverer(client *http.Client, userAgent string, config *domain.DiscoveryConfig, table *domain.CategoryTable, logger *zap.Logger) *HTMLDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &HTMLDiscoverer{
		client:     client,
		userAgent:  userAgent,
		config:     config,
		table:      table,
		logger:     logger,
		attrsByTag: make(map[string][]string),
		linkRels:   make(map[string]struct{}),
		feedExts:   make(map[string]struct{}),
	}

	parts := make([]string, 0, len(config.Selectors))
	for _, sel := range config.Selectors {
		tag := strings.ToLower(strings.TrimSpace(sel.Tag))
		attr := strings.ToLower(strings.TrimSpace(sel.Attr))
		if tag == "" || attr == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s[%s]", tag, attr))
		d.attrsByTag[tag] = append(d.attrsByTag[tag], attr)
	}
	d.selector = strings.Join(parts, ", ")

	for _, rel := range config.LinkRels {
		d.linkRels[normalizeRel(rel)] = struct{}{}
	}
	for _, ext := range config.FeedExtensions {
		d.feedExts[domain.NormalizeExtension(ext)] = struct{}{}
	}
	return d
}

// Discover implements domain.Discoverer
func (d *HTMLDiscoverer) Discover(ctx context.Context, pageURL, filter string, emit func(domain.DiscoveryEvent)) (*domain.DiscoveryResult, error) {
	if emit == nil {
		emit = func(domain.DiscoveryEvent) {}
	}
	fail := func(err error) (*domain.DiscoveryResult, error) {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
		return nil, &domain.DiscoveryError{URL: pageURL, Cause: err}
	}

	if _, err := ParsePageURL(pageURL); err != nil {
		return fail(err)
	}

	emit(domain.DiscoveryEvent{Kind: domain.DiscoveryStatus, Message: "Connecting to: " + pageURL})

	req, err := newRequest(ctx, pageURL, d.userAgent)
	if err != nil {
		return fail(err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		d.logger.Warn("Page returned error status, parsing anyway",
			zap.String("url", pageURL),
			zap.Int("status", resp.StatusCode))
		emit(domain.DiscoveryEvent{
			Kind:    domain.DiscoveryWarning,
			Message: fmt.Sprintf("Warning: server responded with HTTP %d", resp.StatusCode),
		})
	}

	contentType := resp.Header.Get("Content-Type")
	if !isMarkup(contentType) {
		return fail(fmt.Errorf("unsupported content type %q", contentType))
	}

	var body io.Reader = resp.Body
	if d.config.MaxPageBytes > 0 {
		body = io.LimitReader(body, d.config.MaxPageBytes)
	}
	decoded, err := charset.NewReader(body, contentType)
	if err != nil {
		return fail(fmt.Errorf("failed to decode page: %w", err))
	}

	emit(domain.DiscoveryEvent{Kind: domain.DiscoveryStatus, Message: "Parsing HTML..."})

	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return fail(fmt.Errorf("failed to parse page: %w", err))
	}

	finalURL := resp.Request.URL
	base := finalURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := finalURL.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	files := d.extract(doc, base, filter, emit)

	result := &domain.DiscoveryResult{
		Page: domain.PageInfo{
			URL:        pageURL,
			FinalURL:   finalURL.String(),
			StatusCode: resp.StatusCode,
			Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		},
		Category: filter,
		Files:    files,
	}
	if d.config.DetectLanguage {
		result.Page.Language = detectLanguage(doc, result.Page.Title)
	}

	d.logger.Info("Discovery finished",
		zap.String("url", pageURL),
		zap.String("final_url", result.Page.FinalURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("files", len(files)))
	emit(domain.DiscoveryEvent{
		Kind:    domain.DiscoveryCompleted,
		Message: fmt.Sprintf("Discovery finished. Found %d files.", len(files)),
		Result:  result,
	})

	return result, nil
}

// extract walks matching elements in document order and keeps the first occurrence of each URL
func (d *HTMLDiscoverer) extract(doc *goquery.Document, base *url.URL, filter string, emit func(domain.DiscoveryEvent)) []domain.DiscoveredFile {
	files := make([]domain.DiscoveredFile, 0)
	if d.selector == "" {
		return files
	}
	seen := make(map[string]struct{})

	doc.Find(d.selector).Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		for _, attr := range d.attrsByTag[tag] {
			value, ok := s.Attr(attr)
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			if attr == "srcset" {
				value = firstSrcsetCandidate(value)
			}

			abs, ok := resolveCandidate(base, value)
			if !ok {
				continue
			}
			ext := domain.ResolveExtension(abs)
			if tag == "link" {
				if ext == "" && !d.structuralLink(s, abs) {
					continue
				}
			} else if ext == "" {
				continue
			}

			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}

			file := domain.NewDiscoveredFile(abs, ext, d.table, filter)
			files = append(files, file)
			emit(domain.DiscoveryEvent{Kind: domain.DiscoveryFound, Message: "Found: " + abs, File: &file})
		}
	})

	return files
}

// structuralLink reports whether a <link> without a usable extension still points at a resource
func (d *HTMLDiscoverer) structuralLink(s *goquery.Selection, abs string) bool {
	rel := normalizeRel(s.AttrOr("rel", ""))
	if _, ok := d.linkRels[rel]; ok {
		return true
	}
	tokens := strings.Fields(rel)
	for _, tok := range tokens {
		if _, ok := d.linkRels[tok]; ok {
			return true
		}
	}
	for _, tok := range tokens {
		if tok != "alternate" {
			continue
		}
		linkType := strings.ToLower(s.AttrOr("type", ""))
		if strings.Contains(linkType, "rss") || strings.Contains(linkType, "atom") {
			return true
		}
		u, err := url.Parse(abs)
		if err != nil {
			return false
		}
		for ext := range d.feedExts {
			if strings.HasSuffix(strings.ToLower(u.Path), ext) {
				return true
			}
		}
	}
	return false
}

// ParsePageURL accepts only absolute http(s) URLs with a host
func ParsePageURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidURL, raw)
	}
	return u, nil
}

// resolveCandidate makes value absolute against base and drops fragments.
// Non-navigational schemes and bare fragments are rejected.
func resolveCandidate(base *url.URL, value string) (string, bool) {
	if value == "" || strings.HasPrefix(value, "#") {
		return "", false
	}
	lower := strings.ToLower(value)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	u, err := base.Parse(value)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// firstSrcsetCandidate returns the URL of the first srcset entry
func firstSrcsetCandidate(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func normalizeRel(rel string) string {
	return strings.Join(strings.Fields(strings.ToLower(rel)), " ")
}

// isMarkup accepts text and XML media types, and a missing Content-Type
func isMarkup(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(contentType)
	}
	return strings.HasPrefix(mediaType, "text/") || strings.Contains(mediaType, "xml")
}

func detectLanguage(doc *goquery.Document, title string) string {
	doc.Find("script, style, noscript").Remove()
	words := strings.Fields(doc.Find("body").Text())
	if len(words) > 100 {
		words = words[:100]
	}
	text := strings.TrimSpace(title + " " + strings.Join(words, " "))
	if text == "" {
		return ""
	}
	return whatlanggo.Detect(text).Lang.Iso6393()
}
