package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/onyxia-store/onyxia/pkg/storage"
)

// DiskStore persists the whole key space as one JSON object on a
// storage.Disk. Every write rewrites the object; the quota is applied to the
// in-memory view first.
type DiskStore struct {
	mu   sync.Mutex
	disk storage.Disk
	path string
	mem  *Memory
}

// OpenDiskStore loads path from disk (a missing object is an empty store).
func OpenDiskStore(ctx context.Context, disk storage.Disk, path string, quota int) (*DiskStore, error) {
	s := &DiskStore{disk: disk, path: path, mem: NewMemory(quota)}

	raw, err := disk.Get(ctx, path)
	if errors.Is(err, storage.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: load %s: %w", path, err)
	}

	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("kvstore: decode %s: %w", path, err)
	}
	for k, v := range data {
		if err := s.mem.Set(k, v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *DiskStore) Get(key string) (string, bool, error) { return s.mem.Get(key) }

func (s *DiskStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had, _ := s.mem.Get(key)
	if err := s.mem.Set(key, value); err != nil {
		return err
	}
	if err := s.flush(); err != nil {
		if had {
			_ = s.mem.Set(key, prev)
		} else {
			_ = s.mem.Remove(key)
		}
		return err
	}
	return nil
}

func (s *DiskStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, _ := s.mem.Get(key); !ok {
		return nil
	}
	_ = s.mem.Remove(key)
	return s.flush()
}

func (s *DiskStore) flush() error {
	s.mem.mu.Lock()
	raw, err := json.Marshal(s.mem.data)
	s.mem.mu.Unlock()
	if err != nil {
		return fmt.Errorf("kvstore: encode: %w", err)
	}
	if err := s.disk.Put(context.Background(), s.path, bytes.NewReader(raw), "application/json"); err != nil {
		return fmt.Errorf("kvstore: save %s: %w", s.path, err)
	}
	return nil
}
