// Package localstore keeps the on-device journal: mood entries, journal
// entries, preferences and the device session, in a single bbolt file.
package localstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"go.pilab.hu/feelscape/cache"
	"go.pilab.hu/feelscape/internal/observable"
)

var (
	bucketMoods    = []byte("moods")
	bucketJournal  = []byte("journal")
	bucketPrefs    = []byte("prefs")
	bucketSessions = []byte("sessions")
)

// Store is the bbolt backed local store. Mood and journal lists are cached in
// observable cells, newest entry first.
type Store struct {
	db  *bbolt.DB
	now func() time.Time

	moods   *observable.Value[[]MoodEntry]
	journal *observable.Value[[]JournalEntry]
}

var _ cache.SessionStore = (*Store)(nil)

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMoods, bucketJournal, bucketPrefs, bucketSessions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:      db,
		now:     time.Now,
		moods:   observable.New[[]MoodEntry](nil),
		journal: observable.New[[]JournalEntry](nil),
	}
	if err := s.reload(); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("Local store opened")
	return s, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) reload() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		moods, err := readAll[MoodEntry](tx.Bucket(bucketMoods))
		if err != nil {
			return err
		}
		journal, err := readAll[JournalEntry](tx.Bucket(bucketJournal))
		if err != nil {
			return err
		}
		s.moods.Store(moods)
		s.journal.Store(journal)
		return nil
	})
}

// AddMood records a mood check-in and returns it with its id and timestamp.
func (s *Store) AddMood(emotion string, score int, notes string) (MoodEntry, error) {
	if score < 1 || score > 5 {
		return MoodEntry{}, ErrInvalidScore
	}
	entry := MoodEntry{
		Timestamp: s.now().UTC(),
		Emotion:   strings.TrimSpace(emotion),
		Score:     score,
		Notes:     strings.TrimSpace(notes),
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return insert(tx.Bucket(bucketMoods), func(id uint64) any {
			entry.ID = id
			return entry
		})
	})
	if err != nil {
		return MoodEntry{}, err
	}

	s.moods.Update(func(cur []MoodEntry) []MoodEntry {
		return prepend(cur, entry)
	})
	return entry, nil
}

// AddJournal stores a journal note. Blank text is ignored and reported with
// ok false.
func (s *Store) AddJournal(text string) (entry JournalEntry, ok bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return JournalEntry{}, false, nil
	}
	entry = JournalEntry{Timestamp: s.now().UTC(), Text: text}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return insert(tx.Bucket(bucketJournal), func(id uint64) any {
			entry.ID = id
			return entry
		})
	})
	if err != nil {
		return JournalEntry{}, false, err
	}

	s.journal.Update(func(cur []JournalEntry) []JournalEntry {
		return prepend(cur, entry)
	})
	return entry, true, nil
}

// Moods returns all mood entries, newest first.
func (s *Store) Moods() []MoodEntry { return s.moods.Load() }

// Trend returns the scores of the last n mood entries, oldest first.
func (s *Store) Trend(n int) []int {
	moods := s.moods.Load()
	if n < len(moods) {
		moods = moods[:n]
	}
	scores := make([]int, len(moods))
	for i, m := range moods {
		scores[len(moods)-1-i] = m.Score
	}
	return scores
}

// Journal returns all journal entries, newest first.
func (s *Store) Journal() []JournalEntry { return s.journal.Load() }

// WatchMoods streams the mood list after every change.
func (s *Store) WatchMoods() (<-chan []MoodEntry, func()) { return s.moods.Subscribe() }

// WatchJournal streams the journal list after every change.
func (s *Store) WatchJournal() (<-chan []JournalEntry, func()) { return s.journal.Subscribe() }

// SetPreference stores a string preference.
func (s *Store) SetPreference(key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPrefs).Put([]byte(key), []byte(value))
	})
}

// GetPreference returns a stored preference and whether it was set.
func (s *Store) GetPreference(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketPrefs).Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	return value, found, err
}

// Set implements cache.SessionStore.
func (s *Store) Set(_ context.Context, key string, entry *cache.SessionEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(key), data)
	})
}

// Get implements cache.SessionStore. Expired entries are reported missing.
func (s *Store) Get(_ context.Context, key string) (*cache.SessionEntry, error) {
	var entry *cache.SessionEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(key))
		if data == nil {
			return nil
		}
		entry = &cache.SessionEntry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if entry == nil || entry.Expired(s.now()) {
		return nil, cache.ErrSessionNotFound
	}
	return entry, nil
}

// Delete implements cache.SessionStore.
func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(key))
	})
}

// insert stores the value built for the next sequence number of b.
func insert(b *bbolt.Bucket, value func(id uint64) any) error {
	id, err := b.NextSequence()
	if err != nil {
		return err
	}
	data, err := json.Marshal(value(id))
	if err != nil {
		return err
	}
	return b.Put(itob(id), data)
}

// readAll decodes every value of b, newest first.
func readAll[T any](b *bbolt.Bucket) ([]T, error) {
	var out []T
	c := b.Cursor()
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return nil, fmt.Errorf("failed to decode entry %d: %w", binary.BigEndian.Uint64(k), err)
		}
		out = append(out, item)
	}
	return out, nil
}

func prepend[T any](list []T, item T) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, item)
	return append(out, list...)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
