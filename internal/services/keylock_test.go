package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyLocks_ExclusiveBlocksReaders(t *testing.T) {
	locks := newKeyLocks()
	unlock := locks.Lock("k")

	acquired := make(chan struct{})
	go func() {
		release := locks.RLock("k")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired a key held exclusively")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return locks.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestKeyLocks_DifferentKeysDoNotBlock(t *testing.T) {
	locks := newKeyLocks()
	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		locks.Lock("b")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestKeyLocks_ReleasedEntriesAreForgotten(t *testing.T) {
	locks := newKeyLocks()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				locks.Lock("k")()
			} else {
				locks.RLock("k")()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, locks.size())
}
