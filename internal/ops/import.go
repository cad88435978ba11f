package ops

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/pattern"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError ImportMode = "error" // fail on any invalid or colliding entry (atomic)
	ImportModeSkip  ImportMode = "skip"  // import what can be imported, report the rest
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	IDs      []string      `json:"ids,omitempty"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one catalog entry that was not imported.
type ImportError struct {
	Index   int    `json:"index"`
	Pattern string `json:"pattern,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import registers the patterns of a YAML catalog. In error mode nothing is
// written unless every entry is valid and free of collisions. In skip mode
// invalid and colliding entries are reported and the rest imported.
func Import(ctx context.Context, env *Env, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip")
	}
	if err := ValidatePath(input.Path, PathCheckRead, env.Config); err != nil {
		return nil, err
	}

	doc, err := readCatalog(input.Path)
	if err != nil {
		return nil, err
	}

	out := &ImportOutput{Errors: []ImportError{}}
	patterns := make([]*pattern.CommandPattern, 0, len(doc.Patterns))
	indexes := make([]int, 0, len(doc.Patterns))
	for i, entry := range doc.Patterns {
		p, err := newPattern(ctx, env, entry.registerInput())
		if err != nil {
			out.Errors = append(out.Errors, importError(i, entry.Pattern, entry.Scope, err))
			continue
		}
		patterns = append(patterns, p)
		indexes = append(indexes, i)
	}
	if input.Mode == ImportModeError && len(out.Errors) > 0 {
		return out, nil
	}
	out.Skipped = len(out.Errors)

	tx, err := env.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	for k, p := range patterns {
		err := db.InsertPattern(ctx, tx, p)
		if err == nil {
			out.IDs = append(out.IDs, p.ID)
			continue
		}
		if !errors.Is(err, errors.ErrDuplicate) {
			return nil, err
		}
		out.Errors = append(out.Errors, importError(indexes[k], p.Pattern, p.Scope, err))
		if input.Mode == ImportModeError {
			return &ImportOutput{Errors: out.Errors}, nil
		}
		out.Skipped++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	out.Imported = len(out.IDs)
	if out.Imported > 0 {
		env.Registry.Invalidate()
		env.Metrics.PatternWrite("import")
	}
	return out, nil
}

func readCatalog(path string) (*Catalog, error) {
	file, err := openNoFollow(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open catalog: %w", err))
	}
	defer file.Close()

	var doc Catalog
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.NewInvalidRequest("catalog is empty")
		}
		return nil, errors.NewInvalidRequest(fmt.Sprintf("malformed catalog: %v", err))
	}
	if doc.Version != CatalogVersion {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unsupported catalog_version %d (want %d)", doc.Version, CatalogVersion))
	}
	return &doc, nil
}

func importError(index int, template, scope string, err error) ImportError {
	ie := ImportError{Index: index, Pattern: template, Scope: scope, Code: string(errors.ErrInternal), Message: err.Error()}
	var rErr *errors.RouterError
	if stderrors.As(err, &rErr) {
		ie.Code = string(rErr.Code)
		ie.Message = rErr.Message
	}
	return ie
}
