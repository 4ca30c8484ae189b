package domain

import (
	"sort"
)

// DiscoveredFile is a downloadable resource found on a page
type DiscoveredFile struct {
	URL       string `json:"url"`
	Extension string `json:"extension"`
	Category  string `json:"category"`
	Selected  bool   `json:"selected"`
}

// NewDiscoveredFile classifies a resolved URL against the table and sets the
// default selection for the active filter category
func NewDiscoveredFile(rawURL, ext string, table *CategoryTable, filter string) DiscoveredFile {
	return DiscoveredFile{
		URL:       rawURL,
		Extension: ext,
		Category:  table.Classify(ext),
		Selected:  table.Matches(filter, ext),
	}
}

// PageInfo describes the page a discovery run fetched
type PageInfo struct {
	URL        string `json:"url"`
	FinalURL   string `json:"final_url"`
	StatusCode int    `json:"status_code"`
	Title      string `json:"title,omitempty"`
	Language   string `json:"language,omitempty"`
}

// DiscoveryResult is the outcome of a successful discovery run
type DiscoveryResult struct {
	Page     PageInfo         `json:"page"`
	Category string           `json:"category"`
	Files    []DiscoveredFile `json:"files"`
}

// Clone returns a deep copy so callers can toggle selection independently
func (r *DiscoveryResult) Clone() *DiscoveryResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Files = append([]DiscoveredFile(nil), r.Files...)
	return &out
}

// ApplyCategoryFilter resets every file's selection to membership in category
func ApplyCategoryFilter(files []DiscoveredFile, table *CategoryTable, category string) {
	for i := range files {
		files[i].Selected = table.Matches(category, files[i].Extension)
	}
}

// SelectExtensions marks files selected only when their extension is listed
func SelectExtensions(files []DiscoveredFile, exts []string) {
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[NormalizeExtension(ext)] = struct{}{}
	}
	for i := range files {
		_, ok := allowed[files[i].Extension]
		files[i].Selected = ok
	}
}

// SelectedFiles returns the selected files in discovery order
func SelectedFiles(files []DiscoveredFile) []DiscoveredFile {
	var out []DiscoveredFile
	for _, f := range files {
		if f.Selected {
			out = append(out, f)
		}
	}
	return out
}

// ExtensionsIn returns the sorted distinct extensions among files of a category.
// AllFileTypes yields every extension present.
func ExtensionsIn(files []DiscoveredFile, category string) []string {
	set := make(map[string]struct{})
	for _, f := range files {
		if f.Extension == "" {
			continue
		}
		if category == AllFileTypes || f.Category == category {
			set[f.Extension] = struct{}{}
		}
	}
	exts := make([]string, 0, len(set))
	for ext := range set {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
