package storage

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/justyntemme/quotebook/internal/models"
)

// OldestSchemaVersion is assumed for documents that carry no version field
const OldestSchemaVersion = 1

// Documents claiming a version further ahead than this are treated as corrupt
const maxSchemaVersionAhead = 100

// MigrationStep rewrites a raw document from version N to N+1 in place
type MigrationStep func(doc map[string]any, now time.Time) error

// Migrator upgrades raw library documents one version at a time
type Migrator struct {
	steps map[int]MigrationStep
	now   func() time.Time
	log   *slog.Logger
}

// NewMigrator creates a migrator with every known step registered
func NewMigrator(logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Migrator{
		steps: make(map[int]MigrationStep),
		now:   time.Now,
		log:   logger.With("component", "migrator"),
	}
	m.Register(1, migrateV1ToV2)
	return m
}

// Register installs the step that upgrades documents at version from
func (m *Migrator) Register(from int, step MigrationStep) {
	m.steps[from] = step
}

// Migrate walks doc from version from up to version to. Versions without a
// registered step pass through unchanged.
func (m *Migrator) Migrate(doc map[string]any, from, to int) (map[string]any, error) {
	if doc == nil {
		doc = make(map[string]any)
	}
	now := m.now()
	for version := max(from, OldestSchemaVersion); version < to; version++ {
		step, ok := m.steps[version]
		if !ok {
			continue
		}
		m.log.Info("migrating library document", "from", version, "to", version+1)
		if err := step(doc, now); err != nil {
			return nil, fmt.Errorf("migrate v%d to v%d: %w", version, version+1, err)
		}
	}
	return doc, nil
}

// PeekSchemaVersion reads the version field without decoding the rest.
// A missing or non-integer field means the oldest version. An integer
// outside the range a real document can carry is an ErrDecode.
func PeekSchemaVersion(doc map[string]any) (int, error) {
	var version float64
	switch v := doc["schemaVersion"].(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return OldestSchemaVersion, nil
		}
		version = v
	case int:
		version = float64(v)
	default:
		return OldestSchemaVersion, nil
	}
	if version < OldestSchemaVersion || version > models.CurrentSchemaVersion+maxSchemaVersionAhead {
		return 0, fmt.Errorf("%w: schema version %g out of range", ErrDecode, version)
	}
	return int(version), nil
}

// migrateV1ToV2 turns the singular author field into an authors list and
// stamps books that have no added date with the migration time
func migrateV1ToV2(doc map[string]any, now time.Time) error {
	books, ok := doc["books"].([]any)
	if !ok {
		books = []any{}
	}
	stamp := now.UTC().Format(time.RFC3339)

	for _, entry := range books {
		book, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if author, ok := book["author"].(string); ok {
			book["authors"] = []any{author}
			delete(book, "author")
		} else if _, has := book["authors"]; !has {
			book["authors"] = []any{}
		}
		if _, has := book["addedDate"]; !has {
			book["addedDate"] = stamp
		}
	}

	doc["books"] = books
	doc["schemaVersion"] = 2
	return nil
}
