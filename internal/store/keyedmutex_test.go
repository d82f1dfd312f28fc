package store

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("SPY")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	unlock := km.Lock("SPY")
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := km.Lock("QQQ")
		u()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on QQQ blocked behind SPY")
	}
}

func TestKeyedMutex_ReadersShare(t *testing.T) {
	km := NewKeyedMutex()
	r1 := km.RLock("SPY")
	defer r1()

	done := make(chan struct{})
	go func() {
		r2 := km.RLock("SPY")
		r2()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked")
	}
}

func TestKeyedMutex_ReleasedKeysAreDropped(t *testing.T) {
	km := NewKeyedMutex()
	for _, sym := range []string{"SPY", "QQQ", "AAPL"} {
		km.Lock(sym)()
		km.RLock(sym)()
	}
	if n := km.Len(); n != 0 {
		t.Errorf("Len = %d after every lock was released, want 0", n)
	}

	unlock := km.Lock("SPY")
	waiting := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(waiting)
		u := km.RLock("SPY")
		u()
		close(done)
	}()
	<-waiting
	if n := km.Len(); n != 1 {
		t.Errorf("Len = %d while SPY is held, want 1", n)
	}
	unlock()
	<-done
	if n := km.Len(); n != 0 {
		t.Errorf("Len = %d after the waiter finished, want 0", n)
	}
}
