// Package inmemory provides a process-local history store.
package inmemory

import (
	"context"
	"sync"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/storage"
)

// Driver keeps the encoded history in memory.
type Driver struct {
	mu    sync.RWMutex
	data  []byte
	quota int
}

// Option configures a Driver.
type Option func(*Driver)

// WithQuota sets the maximum encoded history size in bytes.
func WithQuota(bytes int) Option {
	return func(d *Driver) { d.quota = bytes }
}

// NewDriver creates an empty Driver with storage.DefaultQuotaBytes.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{quota: storage.DefaultQuotaBytes}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Save(_ context.Context, entries []storage.Entry) error {
	data, err := storage.Encode(entries, d.quota)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.data = data
	d.mu.Unlock()
	return nil
}

func (d *Driver) Load(_ context.Context) ([]storage.Entry, error) {
	d.mu.RLock()
	data := d.data
	d.mu.RUnlock()

	if data == nil {
		return nil, nil
	}
	return storage.Decode(data)
}

func (d *Driver) Clear(_ context.Context) error {
	d.mu.Lock()
	d.data = nil
	d.mu.Unlock()
	return nil
}

func (d *Driver) Close() error { return nil }

var _ storage.HistoryStore = (*Driver)(nil)
