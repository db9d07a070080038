package localstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store is the on-device key-value persistence contract. All operations are
// synchronous and scoped to the device. Malformed or missing rows are treated
// as absent; writes whose value is unchanged are ignored so the polling path
// is not flooded with redundant notifications.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	// Revision returns a counter that advances whenever the observed value of
	// the key changes, including changes discovered through Get. Callers use
	// it to decide whether a reload is needed without re-comparing payloads.
	Revision(key string) uint64
	// Subscribe registers a callback invoked after every effective write or
	// delete. The returned function cancels the subscription.
	Subscribe(fn func(key string)) func()
	Close() error
}

type kvEntry struct {
	Key   string `gorm:"column:k;primaryKey"`
	Value string `gorm:"column:v"`
}

func (kvEntry) TableName() string { return "kv_entries" }

// SQLiteStore implements Store on an embedded sqlite database through GORM.
type SQLiteStore struct {
	db   *gorm.DB
	log  zerolog.Logger
	path string

	mu      sync.Mutex
	cache   map[string]string
	revs    map[string]uint64
	rev     uint64
	subs    map[int]func(string)
	nextSub int
}

// Open opens (or creates) the device store at the given path.
func Open(path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}
	return &SQLiteStore{
		db:    db,
		log:   log,
		path:  path,
		cache: make(map[string]string),
		revs:  make(map[string]uint64),
		subs:  make(map[int]func(string)),
	}, nil
}

// Path returns the database file location, used for change watching.
func (s *SQLiteStore) Path() string { return s.path }

// Get reads a key. A row that cannot be read is treated as absent rather than
// failing the caller. Values changed by another process are detected here and
// advance the key's revision.
func (s *SQLiteStore) Get(key string) (string, bool) {
	var entry kvEntry
	err := s.db.First(&entry, "k = ?", key).Error

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("local store read failed, treating as absent")
		}
		if _, had := s.cache[key]; had {
			delete(s.cache, key)
			s.bumpLocked(key)
		}
		return "", false
	}

	if cached, ok := s.cache[key]; !ok || cached != entry.Value {
		s.cache[key] = entry.Value
		s.bumpLocked(key)
	}
	return entry.Value, true
}

// Set writes a key. Writes where the value is unchanged are ignored.
func (s *SQLiteStore) Set(key, value string) {
	s.mu.Lock()
	if cached, ok := s.cache[key]; ok && cached == value {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// The cache may be cold; compare against the stored row before writing.
	var entry kvEntry
	if err := s.db.First(&entry, "k = ?", key).Error; err == nil && entry.Value == value {
		s.mu.Lock()
		s.cache[key] = value
		s.mu.Unlock()
		return
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&kvEntry{Key: key, Value: value}).Error
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("local store write failed")
		return
	}

	s.mu.Lock()
	s.cache[key] = value
	s.bumpLocked(key)
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(key)
	}
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *SQLiteStore) Delete(key string) {
	if err := s.db.Delete(&kvEntry{}, "k = ?", key).Error; err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("local store delete failed")
		return
	}

	s.mu.Lock()
	if _, had := s.cache[key]; !had {
		s.mu.Unlock()
		return
	}
	delete(s.cache, key)
	s.bumpLocked(key)
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(key)
	}
}

// Revision returns the key's current change counter.
func (s *SQLiteStore) Revision(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revs[key]
}

// Subscribe registers a change callback and returns its cancel function.
func (s *SQLiteStore) Subscribe(fn func(key string)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) bumpLocked(key string) {
	s.rev++
	s.revs[key] = s.rev
}

func (s *SQLiteStore) snapshotSubsLocked() []func(string) {
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}
