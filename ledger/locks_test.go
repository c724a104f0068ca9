package ledger

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPartyLocks_SerializesSameParty(t *testing.T) {
	locks := newPartyLocks()
	var inside, maxInside int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("p1")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locks.locks)
}

func TestPartyLocks_OppositeOrderDoesNotDeadlock(t *testing.T) {
	locks := newPartyLocks()
	done := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				locks.lock("a", "b")()
			}()
			go func() {
				defer wg.Done()
				locks.lock("b", "a", "b")()
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("multi-party lockers deadlocked")
	}
	assert.Empty(t, locks.locks)
}
