package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/justyntemme/quotebook/internal/models"
)

var (
	// ErrDecode is returned when the persisted library cannot be parsed
	ErrDecode = errors.New("storage: malformed library document")
	// ErrEncoding is returned when an image encodes to no data
	ErrEncoding = errors.New("storage: image encoding produced no data")
)

// LibraryStore loads and saves the whole library document as one JSON file
type LibraryStore struct {
	path     string
	migrator *Migrator
	log      *slog.Logger

	// serializes writers of the same file
	mu sync.Mutex
}

// NewLibraryStore creates a store for the document at path
func NewLibraryStore(path string, logger *slog.Logger) *LibraryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LibraryStore{
		path:     path,
		migrator: NewMigrator(logger),
		log:      logger.With("component", "library_store"),
	}
}

// Path returns the canonical location of the document
func (s *LibraryStore) Path() string {
	return s.path
}

// Load reads the library, migrating older layouts to the current schema.
// A missing file yields an empty library and nothing is written.
func (s *LibraryStore) Load() (models.Library, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewLibrary(), nil
	}
	if err != nil {
		return models.Library{}, fmt.Errorf("read library: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Library{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if raw == nil {
		return models.Library{}, fmt.Errorf("%w: document is not an object", ErrDecode)
	}

	version, err := PeekSchemaVersion(raw)
	if err != nil {
		return models.Library{}, err
	}
	if version != models.CurrentSchemaVersion {
		s.log.Info("library schema is stale", "path", s.path, "version", version, "current", models.CurrentSchemaVersion)
		migrated, err := s.migrator.Migrate(raw, version, models.CurrentSchemaVersion)
		if err != nil {
			return models.Library{}, err
		}
		if data, err = json.Marshal(migrated); err != nil {
			return models.Library{}, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	}

	var lib models.Library
	if err := json.Unmarshal(data, &lib); err != nil {
		return models.Library{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	normalize(&lib)

	if lib.SchemaVersion != models.CurrentSchemaVersion {
		s.log.Info("re-stamping library schema version", "path", s.path, "version", lib.SchemaVersion)
		lib.SchemaVersion = models.CurrentSchemaVersion
		if err := s.Save(lib); err != nil {
			return models.Library{}, err
		}
	}
	return lib, nil
}

// Save writes the library with the current schema version. The file at
// Path is replaced atomically; readers see either the old or new document.
func (s *LibraryStore) Save(lib models.Library) error {
	lib.SchemaVersion = models.CurrentSchemaVersion
	normalize(&lib)

	data, err := json.MarshalIndent(lib, "", "  ")
	if err != nil {
		return fmt.Errorf("encode library: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write library: %w", err)
	}
	s.log.Debug("library saved", "path", s.path, "books", len(lib.Books))
	return nil
}

// normalize replaces nil slices so the document always encodes arrays
func normalize(lib *models.Library) {
	if lib.Books == nil {
		lib.Books = []models.Book{}
	}
	for i := range lib.Books {
		b := &lib.Books[i]
		if b.Authors == nil {
			b.Authors = []string{}
		}
		if b.Quotes == nil {
			b.Quotes = []models.Quote{}
		}
		for j := range b.Quotes {
			if b.Quotes[j].Tags == nil {
				b.Quotes[j].Tags = []string{}
			}
		}
	}
}

// writeFileAtomic writes data to a temporary file next to path and renames it into place
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, perm)
}
