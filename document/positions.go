package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gap "github.com/muesli/go-app-paths"
)

const positionsFileName = "positions.json"

// Position is the saved reading position of one document.
type Position struct {
	Page      int       `json:"page"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Positions persists the last page read per document hash.
type Positions struct {
	path string
	data map[string]Position
	mu   sync.RWMutex
}

// DefaultPositionsPath returns the positions file in the user data dir.
func DefaultPositionsPath() (string, error) {
	scope := gap.NewScope(gap.User, "voiceverse")
	dir, err := scope.DataPath("")
	if err != nil {
		return "", fmt.Errorf("unable to find data directory: %w", err)
	}
	return filepath.Join(dir, positionsFileName), nil
}

// LoadPositions reads the store at path. A missing or corrupt file yields an
// empty store.
func LoadPositions(path string) *Positions {
	p := &Positions{
		path: path,
		data: make(map[string]Position),
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	if err := json.Unmarshal(b, &p.data); err != nil {
		p.data = make(map[string]Position)
	}
	return p
}

// Get returns the saved page for a document.
func (p *Positions) Get(d *Document) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.data[d.Hash()]
	return pos.Page, ok
}

// Set records page for a document and writes the store.
func (p *Positions) Set(d *Document, page int) error {
	p.mu.Lock()
	p.data[d.Hash()] = Position{Page: page, Title: d.Title, UpdatedAt: time.Now()}
	b, err := json.MarshalIndent(p.data, "", "  ")
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("unable to create positions directory: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("unable to write positions: %w", err)
	}
	return os.Rename(tmp, p.path)
}
