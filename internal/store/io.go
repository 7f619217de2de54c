package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"denim/internal/domain"
)

// ExportJSON writes every record of h to path as indented JSON. The file is
// replaced atomically and readable only by the owner.
func ExportJSON(ctx context.Context, h domain.HistoryStore, path string) error {
	recs, err := h.List(ctx)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []domain.HistoryRecord{}
	}
	return writeJSON(path, recs, 0o600)
}

// writeJSON writes JSON via a temp file then rename.
func writeJSON(path string, v any, mode os.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, b, mode)
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
