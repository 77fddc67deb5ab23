package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PageBreak separates pages in plain text input. pdftotext emits one after
// every page.
const PageBreak = "\f"

// TextFormat reads plain text with form-feed page breaks.
type TextFormat struct{}

func init() {
	Register(&TextFormat{})
}

func (f *TextFormat) Name() string         { return "text" }
func (f *TextFormat) Extensions() []string { return []string{".txt", ".text", ""} }

func (f *TextFormat) Open(path string) (*Document, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck
	return Load(r, filepath.Base(path))
}

// Load reads plain text from r. A trailing page break does not start an
// empty page.
func Load(r io.Reader, title string) (*Document, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read document: %w", err)
	}
	return &Document{Title: title, Pages: SplitPages(string(b))}, nil
}

// SplitPages splits text on PageBreak.
func SplitPages(text string) []string {
	text = strings.TrimSuffix(text, PageBreak)
	if text == "" {
		return nil
	}
	return normalize(strings.Split(text, PageBreak))
}
