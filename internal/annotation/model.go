package annotation

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidStatus = errors.New("invalid annotation status")
	ErrNotFound      = errors.New("annotation not found")
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusUnsure    Status = "unsure"
)

// ParseStatus accepts exactly "confirmed" or "unsure".
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusConfirmed, StatusUnsure:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidStatus)
	}
}

// Key identifies one user's annotation of one record.
type Key struct {
	Username  string `json:"username"`
	DatasetID string `json:"dataset_id"`
	RecordID  string `json:"record_id"`
}

func (k Key) String() string {
	return k.Username + "/" + k.DatasetID + "/" + k.RecordID
}

// Annotation is a reviewer's free-text diagnosis of a record.
type Annotation struct {
	Text      string    `json:"text"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry pairs an annotation with its key.
type Entry struct {
	Key        Key        `json:"key"`
	Annotation Annotation `json:"annotation"`
}
