package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DefaultQuota mirrors the few megabytes a browser origin gets for local
// storage.
const DefaultQuota = 5 << 20

var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KV is a durable key-value store. Every successful write is on disk before
// it returns.
type KV interface {
	Get(key string, out any) (bool, error)
	Set(key string, v any) error
	Delete(keys ...string) error
}

// FileKV persists all of its values as a single JSON document.
type FileKV struct {
	path   string
	quota  int
	values Values

	mu sync.Mutex
}

type FileKVOpt func(*FileKV)

// WithQuota caps the encoded size of the store. Zero disables the cap.
func WithQuota(bytes int) FileKVOpt {
	return func(kv *FileKV) {
		kv.quota = bytes
	}
}

func OpenFileKV(path string, opts ...FileKVOpt) (*FileKV, error) {
	kv := &FileKV{
		path:   path,
		quota:  DefaultQuota,
		values: Values{},
	}

	for _, opt := range opts {
		opt(kv)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return kv, nil
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &kv.values); err != nil {
		return nil, fmt.Errorf("unmarshalling %s: %w", path, err)
	}
	if kv.values == nil {
		kv.values = Values{}
	}

	return kv, nil
}

func (kv *FileKV) Get(key string, out any) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	return kv.values.Get(key, out)
}

// Set stores v under key. The in-memory state only changes once the write
// reached disk.
func (kv *FileKV) Set(key string, v any) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	next := kv.values.clone()
	if err := next.Set(key, v); err != nil {
		return err
	}

	if err := kv.persist(next); err != nil {
		return err
	}
	kv.values = next
	return nil
}

func (kv *FileKV) Delete(keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	next := kv.values.clone()
	next.Delete(keys...)

	if err := kv.persist(next); err != nil {
		return err
	}
	kv.values = next
	return nil
}

func (kv *FileKV) persist(vs Values) error {
	data, err := json.Marshal(vs)
	if err != nil {
		return fmt.Errorf("marshalling store: %w", err)
	}

	if kv.quota > 0 && len(data) > kv.quota {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrQuotaExceeded, len(data), kv.quota)
	}

	return replaceFile(kv.path, data, 0600)
}
