package bucketing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"geosnap-service/internal/config"
)

func newTestManager(stripes int) *StripeManager {
	cfg := &config.Config{}
	cfg.Bucketing.EmailStripes = stripes
	return NewStripeManager(cfg)
}

func TestStripeForIsStable(t *testing.T) {
	sm := newTestManager(64)

	first := sm.StripeFor("user@example.com")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, sm.StripeFor("user@example.com"))
	}
}

func TestStripeForStaysInRange(t *testing.T) {
	sm := newTestManager(8)

	emails := []string{"a@x.com", "b@x.com", "c@y.org", "d@z.net", "e@e.io"}
	for _, email := range emails {
		stripe := sm.StripeFor(email)
		assert.GreaterOrEqual(t, stripe, 0)
		assert.Less(t, stripe, sm.StripeCount())
	}
}

func TestZeroStripesFallsBackToDefault(t *testing.T) {
	sm := newTestManager(0)
	assert.Equal(t, 64, sm.StripeCount())
}

func TestLockEmailSerializes(t *testing.T) {
	sm := newTestManager(4)

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := sm.LockEmail("same@example.com")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}
