package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeSegment = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FSStore keeps evidence under base/<test>/<student>/<ref>.bin with a JSON
// metadata sidecar. Files are created exclusively and never overwritten.
type FSStore struct {
	base string
}

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data/evidence"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Put(ctx context.Context, data []byte, meta Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("empty evidence")
	}

	ref := strings.Join([]string{
		segment(meta.TestID),
		segment(meta.StudentID),
		fmt.Sprintf("%d-%s", meta.CapturedAt.UnixMilli(), uuid.NewString()),
	}, "/")

	dst := s.path(ref)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := writeExclusive(dst+".bin", data); err != nil {
		return "", err
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	if err := writeExclusive(dst+".json", metaBytes); err != nil {
		return "", err
	}
	return ref, nil
}

func (s *FSStore) Get(ctx context.Context, ref string) ([]byte, *Metadata, error) {
	if strings.Contains(ref, "..") || ref == "" {
		return nil, nil, ErrEvidenceNotFound
	}
	dst := s.path(ref)

	data, err := os.ReadFile(dst + ".bin")
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrEvidenceNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var meta Metadata
	if raw, err := os.ReadFile(dst + ".json"); err == nil {
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, nil, fmt.Errorf("corrupt evidence metadata %s: %w", ref, err)
		}
	}
	return data, &meta, nil
}

func (s *FSStore) path(ref string) string {
	return filepath.Join(s.base, filepath.FromSlash(filepath.Clean("/"+ref)))
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func segment(s string) string {
	s = unsafeSegment.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.ReplaceAll(s, "..", "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "_"
	}
	return s
}
