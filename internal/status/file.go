package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/raaihank/incident-sentinel/internal/logger"
	"go.uber.org/zap"
)

// FileStore keeps updates in memory and snapshots them to a JSON file after
// every append. The snapshot is replaced atomically, so a crash leaves either
// the previous or the new list on disk.
type FileStore struct {
	memory *MemoryStore
	path   string
	logger *logger.Logger

	// serialises append+snapshot so snapshots land in append order
	writeMu sync.Mutex
}

// NewFileStore opens the snapshot at path, creating its directory if needed
func NewFileStore(path string, maxUpdates int, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	store := &FileStore{
		memory: NewMemoryStore(maxUpdates),
		path:   path,
		logger: log,
	}

	updates, err := readSnapshot(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		log.Warn("Ignoring unreadable status snapshot", zap.String("path", path), zap.Error(err))
	default:
		store.memory.seed(updates)
	}

	log.Info("File status store initialized",
		zap.String("path", path),
		zap.Int("max_updates", maxUpdates),
		zap.Int("loaded", store.memory.updates.len()),
	)

	return store, nil
}

// Append records update and rewrites the snapshot. A failed snapshot is
// logged; the update stays in memory.
func (s *FileStore) Append(ctx context.Context, update Update) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.memory.Append(ctx, update); err != nil {
		return err
	}

	updates, _ := s.memory.List(ctx)
	if err := writeSnapshot(s.path, updates); err != nil {
		s.logger.Warn("Could not save status snapshot", zap.String("path", s.path), zap.Error(err))
	}

	return nil
}

// List returns the retained updates, newest first
func (s *FileStore) List(ctx context.Context) ([]Update, error) {
	return s.memory.List(ctx)
}

// Close is a no-op; every append is already on disk
func (s *FileStore) Close() error {
	return nil
}

func readSnapshot(path string) ([]Update, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return updates, nil
}

func writeSnapshot(path string, updates []Update) error {
	data, err := json.MarshalIndent(updates, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return atomicWriteFile(path, data, 0o644)
}

// atomicWriteFile writes data to a temp file in the same directory and renames
// it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing content: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing to disk: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
