package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/MikeSquared-Agency/Potency/internal/predictor"
)

const DefaultModelFile = "potency_prediction_model.json"

// FileStore writes the model as JSON to a fixed path. A path ending in .zst
// is zstd-compressed.
type FileStore struct {
	path string
	now  func() time.Time
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultModelFile
	}
	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: expanded, now: time.Now}, nil
}

func (s *FileStore) Location() string { return s.path }

func (s *FileStore) compressed() bool { return strings.HasSuffix(s.path, ".zst") }

func (s *FileStore) Save(_ context.Context, m *predictor.LinearModel) (string, error) {
	data, err := encodeModel(m, s.now())
	if err != nil {
		return "", &PersistenceError{Op: WriteFailed, Location: s.path, Err: err}
	}
	if s.compressed() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return "", &PersistenceError{Op: WriteFailed, Location: s.path, Err: err}
		}
		data = enc.EncodeAll(data, nil)
		_ = enc.Close()
	}
	if err := writeFileReplace(s.path, data); err != nil {
		return "", &PersistenceError{Op: WriteFailed, Location: s.path, Err: err}
	}
	return s.path, nil
}

func (s *FileStore) Load(_ context.Context) (*predictor.LinearModel, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: ReadFailed, Location: s.path, Err: err}
	}
	if s.compressed() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, &PersistenceError{Op: ReadFailed, Location: s.path, Err: err}
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, &PersistenceError{Op: ReadFailed, Location: s.path, Err: fmt.Errorf("zstd: %w", err)}
		}
	}
	m, err := decodeModel(data)
	if err != nil {
		return nil, &PersistenceError{Op: ReadFailed, Location: s.path, Err: err}
	}
	return m, nil
}

func (s *FileStore) Close() error { return nil }

// writeFileReplace writes to a temp file next to path and renames it over
// path, so readers never see a half-written model.
func writeFileReplace(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
