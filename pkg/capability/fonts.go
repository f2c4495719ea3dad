package capability

import (
	"os"
	"path/filepath"
	"strings"
)

// DirFontStore resolves font families to bytes from a directory of
// `.ttf`/`.otf` files named after the family (lowercased, spaces
// stripped). Families are tried in stack order; a generic sans-serif or
// monospace entry with no file on disk resolves to the fallback bytes
// given to NewDirFontStore, when those are non-nil. No font bytes ship
// with the module.
type DirFontStore struct {
	dir              string
	defaultSans      []byte
	defaultMonospace []byte
}

// NewDirFontStore builds a DirFontStore rooted at dir, with the given
// fallback bytes (nil for none) for the generic "sans-serif" and
// "monospace" families.
func NewDirFontStore(dir string, defaultSans, defaultMonospace []byte) *DirFontStore {
	return &DirFontStore{dir: dir, defaultSans: defaultSans, defaultMonospace: defaultMonospace}
}

// Resolve walks stack in order, returning the bytes for the first family
// it can find either on disk or among the bundled defaults.
func (s *DirFontStore) Resolve(stack []string) ([]byte, bool) {
	for _, family := range stack {
		key := normalizeFamily(family)
		if key == "" {
			continue
		}
		for _, ext := range []string{".ttf", ".otf"} {
			path := filepath.Join(s.dir, key+ext)
			if b, err := os.ReadFile(path); err == nil {
				return b, true
			}
		}
		switch key {
		case "sans-serif", "sansserif", "sans":
			if s.defaultSans != nil {
				return s.defaultSans, true
			}
		case "monospace", "mono":
			if s.defaultMonospace != nil {
				return s.defaultMonospace, true
			}
		}
	}
	return nil, false
}

func normalizeFamily(family string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(family), " ", ""))
}
