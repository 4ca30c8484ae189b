package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Reserved category labels
const (
	// AllFileTypes is the pseudo-category that matches every extension
	AllFileTypes = "All file types"
	// CategoryOther is returned for a known extension that no category lists
	CategoryOther = "Other"
	// CategoryUnknown is returned when there is no extension at all
	CategoryUnknown = "Unknown"
)

// Category is a named group of file extensions
type Category struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

// CategoryTable is an ordered, immutable mapping from category names to extension sets.
// Build it once with NewCategoryTable and share it; no method mutates it.
type CategoryTable struct {
	categories []Category
	sets       map[string]map[string]struct{}
}

// NewCategoryTable compiles configured rows into a table, preserving their order
func NewCategoryTable(rows []CategoryConfig) (*CategoryTable, error) {
	table := &CategoryTable{
		categories: make([]Category, 0, len(rows)),
		sets:       make(map[string]map[string]struct{}, len(rows)),
	}

	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			return nil, fmt.Errorf("category name cannot be empty")
		}
		if name == AllFileTypes || name == CategoryOther || name == CategoryUnknown {
			return nil, fmt.Errorf("category name %q is reserved", name)
		}
		if _, dup := table.sets[name]; dup {
			return nil, fmt.Errorf("duplicate category %q", name)
		}

		set := make(map[string]struct{}, len(row.Extensions))
		exts := make([]string, 0, len(row.Extensions))
		for _, ext := range row.Extensions {
			ext = NormalizeExtension(ext)
			if ext == "" {
				continue
			}
			if _, seen := set[ext]; seen {
				continue
			}
			set[ext] = struct{}{}
			exts = append(exts, ext)
		}

		table.sets[name] = set
		table.categories = append(table.categories, Category{Name: name, Extensions: exts})
	}

	return table, nil
}

// DefaultCategoryTable returns the built-in table
func DefaultCategoryTable() *CategoryTable {
	table, err := NewCategoryTable(DefaultCategories())
	if err != nil {
		panic(err)
	}
	return table
}

// NormalizeExtension lowercases an extension and ensures the leading dot
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Classify maps an extension to the first category that lists it.
// It returns CategoryUnknown for an empty extension and CategoryOther when no category matches.
func (t *CategoryTable) Classify(ext string) string {
	ext = NormalizeExtension(ext)
	if ext == "" {
		return CategoryUnknown
	}
	for _, c := range t.categories {
		if _, ok := t.sets[c.Name][ext]; ok {
			return c.Name
		}
	}
	return CategoryOther
}

// Matches reports whether ext belongs to the named category.
// AllFileTypes matches everything, including the empty extension.
func (t *CategoryTable) Matches(category, ext string) bool {
	if category == AllFileTypes {
		return true
	}
	set, ok := t.sets[category]
	if !ok {
		return false
	}
	_, ok = set[NormalizeExtension(ext)]
	return ok
}

// Has reports whether name is a category of the table or AllFileTypes
func (t *CategoryTable) Has(name string) bool {
	if name == AllFileTypes {
		return true
	}
	_, ok := t.sets[name]
	return ok
}

// Categories returns a copy of the table rows in order
func (t *CategoryTable) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Name: c.Name, Extensions: append([]string(nil), c.Extensions...)}
	}
	return out
}

// Names returns the category names in order, followed by AllFileTypes
func (t *CategoryTable) Names() []string {
	names := make([]string, 0, len(t.categories)+1)
	for _, c := range t.categories {
		names = append(names, c.Name)
	}
	return append(names, AllFileTypes)
}

// Extensions returns the sorted extensions of a category
func (t *CategoryTable) Extensions(category string) []string {
	set, ok := t.sets[category]
	if !ok {
		return nil
	}
	exts := make([]string, 0, len(set))
	for ext := range set {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
