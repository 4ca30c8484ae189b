package infrastructure

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const maxNameBytes = 200

var (
	unsafeNameChars   = regexp.MustCompile(`[^a-zA-Z0-9._\- ()]`)
	repeatedUnderline = regexp.MustCompile(`_+`)
	dispositionStar   = regexp.MustCompile(`(?i)filename\*\s*=\s*([^;]+)`)
	dispositionPlain  = regexp.MustCompile(`(?i)filename\s*=\s*['"]?([^'";]+)['"]?`)
)

// FileNamer derives safe, collision-free local file names. One FileNamer must be
// shared by all workers writing into the same directory.
type FileNamer struct {
	mu  sync.Mutex
	now func() time.Time
}

// NewFileNamer creates a file namer
func NewFileNamer() *FileNamer {
	return &FileNamer{now: time.Now}
}

// NameFor returns the path a file would be written to, without creating it.
// It fails when the destination cannot be inspected, e.g. dir is not a directory.
func (n *FileNamer) NameFor(rawURL, contentDisposition, ext, dir string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var path string
	err := firstFree(n.fileName(rawURL, contentDisposition, ext), dir, func(candidate string) error {
		_, err := os.Stat(candidate)
		switch {
		case err == nil:
			return fs.ErrExist
		case errors.Is(err, fs.ErrNotExist):
			path = candidate
			return nil
		default:
			return err
		}
	})
	return path, err
}

// Create picks a free name and creates the file exclusively. Concurrent callers
// never receive the same path.
func (n *FileNamer) Create(rawURL, contentDisposition, ext, dir string) (*os.File, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var f *os.File
	err := firstFree(n.fileName(rawURL, contentDisposition, ext), dir, func(candidate string) error {
		var err error
		f, err = os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// firstFree walks name, name_1, name_2, ... in dir until claim succeeds.
// Only fs.ErrExist moves on to the next suffix; any other error stops the walk.
func firstFree(name, dir string, claim func(candidate string) error) error {
	for i := 0; ; i++ {
		err := claim(filepath.Join(dir, withSuffix(name, i)))
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
}

func (n *FileNamer) fileName(rawURL, contentDisposition, ext string) string {
	name := filenameFromDisposition(contentDisposition)
	if name == "" {
		name = filenameFromURL(rawURL)
	}
	if name == "" || (!strings.Contains(name, ".") && ext != "") {
		name = n.synthesize(ext)
	}

	name = sanitizeFileName(name)
	if name == "" {
		name = n.synthesize(ext)
	}
	return truncateName(name)
}

func (n *FileNamer) synthesize(ext string) string {
	if ext == "" {
		ext = ".dat"
	}
	return fmt.Sprintf("file_%d%s", n.now().UnixMilli(), ext)
}

// filenameFromDisposition reads filename or filename* from a Content-Disposition header
func filenameFromDisposition(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return lastPathElement(name)
		}
	}

	if m := dispositionStar.FindStringSubmatch(header); m != nil {
		value := strings.Trim(strings.TrimSpace(m[1]), `"'`)
		if _, encoded, ok := strings.Cut(value, "''"); ok {
			if decoded, err := url.PathUnescape(encoded); err == nil {
				value = decoded
			} else {
				value = encoded
			}
		}
		if value != "" {
			return lastPathElement(value)
		}
	}
	if m := dispositionPlain.FindStringSubmatch(header); m != nil {
		return lastPathElement(strings.TrimSpace(m[1]))
	}
	return ""
}

// filenameFromURL returns the decoded final path segment
func filenameFromURL(rawURL string) string {
	p := stripQueryAndFragment(rawURL)
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return lastPathElement(p)
}

func lastPathElement(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return p
}

// sanitizeFileName keeps letters, digits, dot, underscore, hyphen, space and parentheses
func sanitizeFileName(name string) string {
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = repeatedUnderline.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	if strings.Trim(name, ".") == "" {
		return ""
	}
	return name
}

func truncateName(name string) string {
	if len(name) <= maxNameBytes {
		return name
	}
	base, ext := splitExt(name)
	if len(ext) >= maxNameBytes {
		return name[:maxNameBytes]
	}
	return base[:maxNameBytes-len(ext)] + ext
}

// withSuffix returns name for i == 0 and base_i.ext otherwise
func withSuffix(name string, i int) string {
	if i == 0 {
		return name
	}
	base, ext := splitExt(name)
	return fmt.Sprintf("%s_%d%s", base, i, ext)
}

func splitExt(name string) (string, string) {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name, ""
	}
	return name[:dot], name[dot:]
}

func stripQueryAndFragment(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
