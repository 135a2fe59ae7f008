package models

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cfilipov/copilot-lexical/internal/db"
)

const settingCacheTTL = 60 * time.Second

// SettingKernel records whether the page runs "with runtime" (connected to a
// notebook server) or "without runtime".
const SettingKernel = "hasKernel"

type SettingStore struct {
	db    *bolt.DB
	mu    sync.RWMutex
	cache map[string]settingEntry
}

type settingEntry struct {
	value   string
	expires time.Time
}

func NewSettingStore(database *bolt.DB) *SettingStore {
	return &SettingStore{
		db:    database,
		cache: make(map[string]settingEntry),
	}
}

// Get retrieves a setting value by key. Returns "" if not found.
func (s *SettingStore) Get(key string) (string, error) {
	s.mu.RLock()
	if entry, ok := s.cache[key]; ok && time.Now().Before(entry.expires) {
		s.mu.RUnlock()
		return entry.value, nil
	}
	s.mu.RUnlock()

	var val string
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(db.BucketSettings).Get([]byte(key)); v != nil {
			val = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = settingEntry{value: val, expires: time.Now().Add(settingCacheTTL)}
	s.mu.Unlock()

	return val, nil
}

// Set stores a setting value (upsert).
func (s *SettingStore) Set(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(db.BucketSettings).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = settingEntry{value: value, expires: time.Now().Add(settingCacheTTL)}
	s.mu.Unlock()

	return nil
}

// GetBool reads a boolean setting. Anything but "true" reads as false, the
// same way the page treats its stored flags.
func (s *SettingStore) GetBool(key string) (bool, error) {
	v, err := s.Get(key)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (s *SettingStore) SetBool(key string, value bool) error {
	return s.Set(key, strconv.FormatBool(value))
}

// GetAll returns all settings as a map.
func (s *SettingStore) GetAll() (map[string]string, error) {
	result := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(db.BucketSettings).ForEach(func(k, v []byte) error {
			result[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	return result, nil
}
