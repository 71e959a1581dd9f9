package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// FSStore keeps exported session documents on local disk, one JSON file per
// session under the configured base directory.
type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data/exports"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

// SaveExport writes an export document for a session, overwriting any prior
// export of the same session.
func (s *FSStore) SaveExport(sessionID string, data []byte) (string, error) {
	if sessionID == "" {
		return "", errors.New("empty session id")
	}
	name := filepath.Clean(sessionID) + ".json"
	dst := filepath.Join(s.base, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

func (s *FSStore) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.base, filepath.Clean(name)))
}
