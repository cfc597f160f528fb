// File path: internal/vector/persist.go
package vector

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/ticket"
)

// ErrNoSnapshot is returned by Load when no snapshot file exists yet. Callers
// treat a fresh index as a normal state, not a failure.
var ErrNoSnapshot = errors.New("no vector snapshot found")

type snapshot struct {
	Dimension int
	Vectors   [][]float32
	Texts     []string
	Metas     []ticket.VectorMeta
}

// Persist writes the vector array and parallel metadata atomically: encode to
// a temp file in the target directory, then rename over the snapshot path.
func (ix *Index) Persist() error {
	ix.mu.RLock()
	snap := snapshot{
		Dimension: ix.dim,
		Vectors:   ix.vectors,
		Texts:     ix.texts,
		Metas:     ix.metas,
	}
	path := ix.path
	ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return StorageError{Op: "persist", Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "index-*.tmp")
	if err != nil {
		return StorageError{Op: "persist", Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return StorageError{Op: "persist", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return StorageError{Op: "persist", Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return StorageError{Op: "persist", Err: err}
	}
	common.Logger().Info("vector: snapshot persisted", "path", path, "vectors", len(snap.Vectors))
	return nil
}

// Load restores a snapshot written by Persist. The serialized parts must be
// consistent: parallel length mismatches and dimension mismatches fail with a
// StorageError rather than loading a corrupt index.
func (ix *Index) Load() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	file, err := os.Open(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoSnapshot
		}
		return StorageError{Op: "load", Err: err}
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return StorageError{Op: "load", Err: err}
	}
	if len(snap.Vectors) != len(snap.Texts) || len(snap.Vectors) != len(snap.Metas) {
		return StorageError{Op: "load", Err: fmt.Errorf(
			"inconsistent snapshot: %d vectors, %d texts, %d metas",
			len(snap.Vectors), len(snap.Texts), len(snap.Metas))}
	}
	if snap.Dimension <= 0 {
		return StorageError{Op: "load", Err: fmt.Errorf("invalid snapshot dimension %d", snap.Dimension)}
	}
	for _, vec := range snap.Vectors {
		if len(vec) != snap.Dimension {
			return StorageError{Op: "load", Err: fmt.Errorf(
				"inconsistent snapshot: vector length %d, dimension %d", len(vec), snap.Dimension)}
		}
	}

	ix.dim = snap.Dimension
	ix.vectors = snap.Vectors
	ix.texts = snap.Texts
	ix.metas = snap.Metas
	common.Logger().Info("vector: snapshot loaded", "path", ix.path, "vectors", len(snap.Vectors), "dimension", snap.Dimension)
	return nil
}
