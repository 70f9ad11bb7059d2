package storage

import (
	"context"
	"errors"
	"time"
)

var ErrEvidenceNotFound = errors.New("evidence not found")

// Metadata describes an evidence blob. It is stored next to the blob.
type Metadata struct {
	TestID      string    `json:"test_id"`
	StudentID   string    `json:"student_id"`
	AttemptID   uint      `json:"attempt_id"`
	Label       string    `json:"label"`
	ContentType string    `json:"content_type"`
	CapturedAt  time.Time `json:"captured_at"`
}

// EvidenceStore is write-once blob storage keyed by an opaque reference.
type EvidenceStore interface {
	Put(ctx context.Context, data []byte, meta Metadata) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, *Metadata, error)
}

// Discard accepts and drops evidence. Used when no evidence directory is configured.
type Discard struct{}

func (Discard) Put(ctx context.Context, data []byte, meta Metadata) (string, error) {
	return "", nil
}

func (Discard) Get(ctx context.Context, ref string) ([]byte, *Metadata, error) {
	return nil, nil, ErrEvidenceNotFound
}
