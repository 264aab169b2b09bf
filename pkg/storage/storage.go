// Package storage defines the local cache the chat consumer persists its
// history to. Only role and content are stored; images never are.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// HistoryKey is the single key the history is stored under.
	HistoryKey = "schoolChatHistory"

	// DefaultQuotaBytes bounds the encoded history size.
	DefaultQuotaBytes = 5 * 1024 * 1024
)

// ErrQuotaExceeded is returned by Save when the encoded history does not fit.
var ErrQuotaExceeded = errors.New("history storage quota exceeded")

// Entry is one persisted chat message.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryStore persists a single chat history.
type HistoryStore interface {
	// Save overwrites the stored history.
	Save(ctx context.Context, entries []Entry) error

	// Load returns the stored history, or nil if none is stored.
	Load(ctx context.Context) ([]Entry, error)

	// Clear removes the stored history.
	Clear(ctx context.Context) error

	// Close releases any resources.
	Close() error
}

// Encode serializes entries and enforces quota. A quota of zero or less disables the check.
func Encode(entries []Entry, quota int) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	if quota > 0 && len(data) > quota {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrQuotaExceeded, len(data), quota)
	}
	return data, nil
}

// Decode parses a stored history.
func Decode(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return entries, nil
}
