package bank

import (
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/util"
	"github.com/samber/lo"
)

type holderLock struct {
	holders int
	mu      sync.RWMutex
}

// accountLocks serializes transactions that share an account. Writable
// accounts are held exclusively, read-only ones shared.
type accountLocks struct {
	l sync.Mutex
	m map[solana.PublicKey]*holderLock
}

func newAccountLocks() *accountLocks {
	return &accountLocks{m: make(map[solana.PublicKey]*holderLock)}
}

// lockSet is the set of locks one transaction holds.
type lockSet struct {
	writable []solana.PublicKey
	readonly []solana.PublicKey
}

// Lock acquires every lock of the transaction. Keys are taken in pubkey order
// so two transactions can never wait on each other.
func (al *accountLocks) Lock(writable []solana.PublicKey, readonly []solana.PublicKey) *lockSet {
	set := &lockSet{
		writable: util.DedupePubkeys(lo.Uniq(writable)),
	}
	set.readonly = util.DedupePubkeys(lo.Filter(lo.Uniq(readonly), func(key solana.PublicKey, _ int) bool {
		return !lo.Contains(set.writable, key)
	}))

	for _, key := range set.ordered() {
		al.lock(key, lo.Contains(set.writable, key))
	}
	return set
}

func (al *accountLocks) Unlock(set *lockSet) {
	for _, key := range set.writable {
		al.unlock(key, true)
	}
	for _, key := range set.readonly {
		al.unlock(key, false)
	}
}

// Held reports how many accounts currently have a holder or a waiter.
func (al *accountLocks) Held() int {
	al.l.Lock()
	defer al.l.Unlock()
	return len(al.m)
}

func (set *lockSet) ordered() []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, len(set.writable)+len(set.readonly))
	keys = append(keys, set.writable...)
	keys = append(keys, set.readonly...)
	return util.DedupePubkeys(keys)
}

func (al *accountLocks) lock(key solana.PublicKey, write bool) {
	al.l.Lock()
	hl, ok := al.m[key]
	if !ok {
		hl = new(holderLock)
		al.m[key] = hl
	}
	hl.holders++
	al.l.Unlock()

	if write {
		hl.mu.Lock()
	} else {
		hl.mu.RLock()
	}
}

func (al *accountLocks) unlock(key solana.PublicKey, write bool) {
	al.l.Lock()
	hl := al.m[key]
	hl.holders--
	if hl.holders == 0 {
		delete(al.m, key)
	}
	al.l.Unlock()

	if write {
		hl.mu.Unlock()
	} else {
		hl.mu.RUnlock()
	}
}
