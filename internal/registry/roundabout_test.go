package registry

import (
	"sync"
	"testing"
	"time"
)

func TestRoundaboutExWriteLaneExcludes(t *testing.T) {
	rb := &Roundabout{}

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		rb.ExWriteLane(1, func() {
			mu.Lock()
			order = append(order, 1)
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
		})
	}()
	time.Sleep(2 * time.Millisecond)
	go func() {
		defer wg.Done()
		rb.ExWriteLane(1, func() {
			mu.Lock()
			order = append(order, 2)
			mu.Unlock()
		})
	}()
	wg.Wait()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected exclusive ordering [1 2], got %v", order)
	}
}

func TestRoundaboutReadAllConcurrent(t *testing.T) {
	rb := &Roundabout{}

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rb.ReadAll(func() {
				results[i] = true
			})
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Fatalf("reader %d never ran", i)
		}
	}
}

func TestRoundaboutFenceExcludesWriters(t *testing.T) {
	rb := &Roundabout{}

	done := make(chan struct{})
	go rb.ExWriteLane(5, func() {
		<-done
	})
	time.Sleep(2 * time.Millisecond)

	fenceRan := make(chan struct{})
	go func() {
		rb.Fence(0b1, func(epoch, flags uint16) {
			close(fenceRan)
		})
	}()

	select {
	case <-fenceRan:
		t.Fatalf("fence ran before the exclusive writer retired")
	case <-time.After(5 * time.Millisecond):
	}

	close(done)
	<-fenceRan
}
