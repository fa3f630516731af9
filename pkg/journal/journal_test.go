package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gregtusar/perptrader/pkg/models"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_EntriesNewestFirst(t *testing.T) {
	s := openTemp(t)

	for _, n := range []uint64{1700000000002, 1700000000000, 1700000000001} {
		err := s.Append(Entry{
			Nonce:    n,
			Action:   "order",
			Count:    1,
			Statuses: []models.OrderStatus{{Kind: models.StatusResting, Oid: n}},
			Time:     time.Unix(0, 0).UTC(),
		})
		if err != nil {
			t.Fatalf("Append(%d) error: %v", n, err)
		}
	}

	all, err := s.Entries(0)
	if err != nil {
		t.Fatalf("Entries() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(all))
	}
	for i, want := range []uint64{1700000000002, 1700000000001, 1700000000000} {
		if all[i].Nonce != want {
			t.Errorf("entry %d nonce = %d, want %d", i, all[i].Nonce, want)
		}
	}
	if all[0].Statuses[0].Oid != 1700000000002 {
		t.Errorf("status oid = %d, want %d", all[0].Statuses[0].Oid, uint64(1700000000002))
	}

	limited, err := s.Entries(2)
	if err != nil {
		t.Fatalf("Entries(2) error: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(Entries(2)) = %d, want 2", len(limited))
	}
}

func TestStore_SameNonceReplaces(t *testing.T) {
	s := openTemp(t)

	if err := s.Append(Entry{Nonce: 5, Action: "order", Error: "network error"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(Entry{Nonce: 5, Action: "order", Count: 1}); err != nil {
		t.Fatal(err)
	}
	entries, err := s.Entries(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(entries))
	}
	if entries[0].Error != "" {
		t.Errorf("Error = %q, want empty", entries[0].Error)
	}
}

func TestStore_NonceHighWaterMark(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	last, err := s.LastNonce()
	if err != nil {
		t.Fatalf("LastNonce() error: %v", err)
	}
	if last != 0 {
		t.Errorf("LastNonce() on empty store = %d, want 0", last)
	}

	if err := s.SaveNonce(100); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveNonce(50); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	last, err = reopened.LastNonce()
	if err != nil {
		t.Fatal(err)
	}
	if last != 100 {
		t.Errorf("LastNonce() after reopen = %d, want 100", last)
	}
}
