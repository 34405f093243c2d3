package turn

import (
	"sync"
	"testing"
	"time"
)

func TestSignalRaise(t *testing.T) {
	t.Parallel()

	s := NewSignal()
	if s.Raised() {
		t.Fatal("fresh signal already raised")
	}
	select {
	case <-s.Done():
		t.Fatal("fresh Done channel closed")
	default:
	}

	s.Raise()
	if !s.Raised() {
		t.Fatal("Raised() = false after Raise")
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel not closed after Raise")
	}

	// Idempotent: a second Raise must not panic on the closed channel.
	s.Raise()
}

func TestSignalClear(t *testing.T) {
	t.Parallel()

	s := NewSignal()
	s.Raise()
	s.Clear()

	if s.Raised() {
		t.Fatal("Raised() = true after Clear")
	}
	select {
	case <-s.Done():
		t.Fatal("Done channel still closed after Clear")
	default:
	}

	// The cycle works again on the re-armed channel.
	s.Raise()
	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed after second Raise")
	}
}

func TestSignalConcurrentRaise(t *testing.T) {
	t.Parallel()

	s := NewSignal()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Raise()
		}()
	}
	wg.Wait()
	if !s.Raised() {
		t.Fatal("signal not raised")
	}
}
