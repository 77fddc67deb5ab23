// Package document loads the page text that is fed to the sentence cursor.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrUnsupportedFormat is returned when no registered format handles a file.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document is an ordered list of page texts.
type Document struct {
	Title string
	Path  string
	Pages []string
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// PageText returns the text of page i.
func (d *Document) PageText(i int) (string, bool) {
	if i < 0 || i >= len(d.Pages) {
		return "", false
	}
	return d.Pages[i], true
}

// Hash identifies the document by content.
func (d *Document) Hash() string {
	h := sha256.New()
	for _, p := range d.Pages {
		_, _ = io.WriteString(h, p)
		_, _ = h.Write([]byte{'\f'})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Format extracts pages from one kind of file.
type Format interface {
	Name() string
	Extensions() []string
	Open(path string) (*Document, error)
}

var formats []Format

// Register adds a format. Formats registered later take precedence for
// shared extensions.
func Register(f Format) {
	formats = append([]Format{f}, formats...)
}

// Formats returns the registered formats.
func Formats() []Format {
	return append([]Format(nil), formats...)
}

// FormatFor returns the format handling path's extension.
func FormatFor(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range formats {
		for _, e := range f.Extensions() {
			if e == ext {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Open loads the document at path using the format matching its extension.
func Open(path string) (*Document, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	doc, err := f.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s document: %w", f.Name(), err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		doc.Path = abs
	} else {
		doc.Path = path
	}
	return doc, nil
}

// OpenFile opens the document at path, treating "-" as standard input.
func OpenFile(path string) (*Document, error) {
	if path == "-" {
		return Load(os.Stdin, "stdin")
	}
	return Open(path)
}

func normalize(pages []string) []string {
	for i, p := range pages {
		pages[i] = norm.NFC.String(p)
	}
	return pages
}
