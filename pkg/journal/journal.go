package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/gregtusar/perptrader/pkg/models"
)

var (
	entryPrefix = []byte("j:")
	nonceKey    = []byte("n:last")
)

// Entry records one exchange submission and what the venue answered.
type Entry struct {
	Nonce    uint64               `json:"nonce"`
	Action   string               `json:"action"`
	Count    int                  `json:"count"`
	Statuses []models.OrderStatus `json:"statuses,omitempty"`
	Error    string               `json:"error,omitempty"`
	Time     time.Time            `json:"time"`
}

// Store is a local pebble database holding the submission journal and the
// nonce high-water mark.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func entryKey(nonce uint64) []byte {
	key := make([]byte, len(entryPrefix)+8)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], nonce)
	return key
}

func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Append stores entry keyed by its nonce. A second entry with the same nonce
// (a re-post of the same signed action) replaces the first.
func (s *Store) Append(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	if err := s.db.Set(entryKey(entry.Nonce), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save journal entry: %w", err)
	}
	return nil
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Entries(limit int) ([]Entry, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: entryPrefix,
		UpperBound: keyUpperBound(entryPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal iterator: %w", err)
	}
	defer iter.Close()

	var entries []Entry
	for iter.Last(); iter.Valid(); iter.Prev() {
		if limit > 0 && len(entries) >= limit {
			break
		}
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) LastNonce() (uint64, error) {
	val, closer, err := s.db.Get(nonceKey)
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read nonce: %w", err)
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt nonce record: %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// SaveNonce raises the stored high-water mark. Lower values are ignored.
func (s *Store) SaveNonce(nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.LastNonce()
	if err != nil {
		return err
	}
	if nonce <= last {
		return nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, nonce)
	if err := s.db.Set(nonceKey, buf, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save nonce: %w", err)
	}
	return nil
}
