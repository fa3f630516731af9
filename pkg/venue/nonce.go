package venue

import (
	"fmt"
	"sync"
	"time"
)

// NonceStore persists the highest nonce handed out so a restart never reuses one.
type NonceStore interface {
	LastNonce() (uint64, error)
	SaveNonce(nonce uint64) error
}

// NonceSource issues millisecond nonces that strictly increase per wallet,
// bumping by one when two requests land in the same millisecond.
type NonceSource struct {
	mu    sync.Mutex
	last  uint64
	now   func() time.Time
	store NonceStore
}

func NewNonceSource(store NonceStore, now func() time.Time) (*NonceSource, error) {
	if now == nil {
		now = time.Now
	}
	n := &NonceSource{now: now, store: store}
	if store != nil {
		last, err := store.LastNonce()
		if err != nil {
			return nil, fmt.Errorf("load nonce high-water mark: %w", err)
		}
		n.last = last
	}
	return n, nil
}

func (n *NonceSource) Next() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := uint64(n.now().UnixMilli())
	if next <= n.last {
		next = n.last + 1
	}
	if n.store != nil {
		if err := n.store.SaveNonce(next); err != nil {
			return 0, fmt.Errorf("persist nonce: %w", err)
		}
	}
	n.last = next
	return next, nil
}
