package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"

	"geosnap-service/internal/config"
)

// StripeManager maps emails onto a fixed set of mutex stripes. Issuance for a
// given email always lands on the same stripe, which serializes the
// invalidate-then-insert sequence without a global lock.
type StripeManager struct {
	stripes    []sync.Mutex
	hasherPool sync.Pool
}

func NewStripeManager(cfg *config.Config) *StripeManager {
	count := cfg.Bucketing.EmailStripes
	if count <= 0 {
		count = 64
	}

	sm := &StripeManager{
		stripes: make([]sync.Mutex, count),
	}

	// Pool of hash functions to avoid per-call allocation
	sm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return sm
}

// LockEmail acquires the stripe for the email and returns its unlock func.
func (sm *StripeManager) LockEmail(email string) func() {
	stripe := &sm.stripes[sm.StripeFor(email)]
	stripe.Lock()
	return stripe.Unlock
}

// StripeFor returns the stripe index for an email (0 to stripes-1).
func (sm *StripeManager) StripeFor(email string) int {
	return int(sm.hashOf(email) % uint64(len(sm.stripes)))
}

// StripeCount returns the number of configured stripes.
func (sm *StripeManager) StripeCount() int {
	return len(sm.stripes)
}

func (sm *StripeManager) hashOf(key string) uint64 {
	hasher := sm.hasherPool.Get().(hash.Hash64)
	defer sm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
