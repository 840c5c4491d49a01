package serverpool

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(2, 0, zerolog.Nop())
	p.Start()
	defer p.Stop()

	var active, maxActive int32
	var mu sync.Mutex
	release := make(chan struct{})
	var wg sync.WaitGroup

	observe := func() {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		<-release
		mu.Lock()
		active--
		mu.Unlock()
		wg.Done()
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		for !p.Submit(observe) {
			time.Sleep(time.Millisecond)
		}
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if maxActive > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", maxActive)
	}
}

func TestPoolDropsOverCapacity(t *testing.T) {
	p := New(1, 0, zerolog.Nop())
	p.Start()
	defer p.Stop()

	block := make(chan struct{})
	time.Sleep(10 * time.Millisecond) // let the worker reach its receive on the unbuffered queue
	if !p.Submit(func() { <-block }) {
		t.Fatal("first submit should be accepted")
	}
	time.Sleep(10 * time.Millisecond) // let the worker pick it up

	if p.Submit(func() {}) {
		t.Fatal("second submit should be dropped: worker busy, queue full")
	}
	if p.Dropped() != 1 {
		t.Fatalf("expected 1 dropped task, got %d", p.Dropped())
	}
	close(block)
}
