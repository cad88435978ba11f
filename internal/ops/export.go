package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/pattern"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path  string  // optional, default: ~/.cmdrouter/exports/<scope>-<timestamp>.yaml
	Scope *string // optional filter by scope
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes every live pattern (disabled ones included) to a YAML catalog.
// The file is written to a temp name and renamed into place, so an existing
// catalog survives a failed export.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(input.Scope, now)
		if err != nil {
			return nil, err
		}
	}
	// Default paths are validated too; the scope ends up in the file name
	if err := ValidatePath(exportPath, PathCheckWrite, env.Config); err != nil {
		return nil, err
	}

	patterns, err := allPatterns(ctx, env, input.Scope)
	if err != nil {
		return nil, err
	}
	doc := Catalog{
		Version:    CatalogVersion,
		ExportedAt: now.Unix(),
		Patterns:   make([]CatalogEntry, 0, len(patterns)),
	}
	for _, p := range patterns {
		doc.Patterns = append(doc.Patterns, catalogEntry(p))
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}
	if err := writeCatalog(exportPath, &doc); err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Count:      len(doc.Patterns),
		ExportedAt: doc.ExportedAt,
	}, nil
}

// allPatterns pages through every live pattern matching scope.
func allPatterns(ctx context.Context, env *Env, scope *string) ([]*pattern.CommandPattern, error) {
	var all []*pattern.CommandPattern
	for offset := 0; ; offset += MaxListLimit {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		page, total, err := db.ListPatterns(ctx, env.DB, db.PatternFilter{
			Scope:           scope,
			IncludeDisabled: true,
			Limit:           MaxListLimit,
			Offset:          offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || offset+len(page) >= total {
			return all, nil
		}
	}
}

func writeCatalog(path string, doc *Catalog) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := yaml.NewEncoder(file)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.NewInternal(err)
	}
	if err := enc.Close(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Closed before the rename (required on Windows)
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if isSymlink(path) {
		return errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}
	success = true
	return nil
}

// defaultExportPath returns ~/.cmdrouter/exports/<scope>-<timestamp>.yaml, or
// all-<timestamp>.yaml without a scope filter.
func defaultExportPath(scope *string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	name := "all"
	if scope != nil && *scope != "" {
		name = SanitizeForFilename(pattern.Normalize(*scope))
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", name, now.Format("2006-01-02T150405"))), nil
}
