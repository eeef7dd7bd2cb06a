package service

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolSubmitReturnsResult(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	got, err := p.Submit(context.Background(), func() []string {
		return []string{"a", "b"}
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Submit = %v, want [a b]", got)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Submit(context.Background(), func() []string {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrent tasks = %d, want <= 2", got)
	}
}

func TestPoolSubmitHonorsContext(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	// 占住唯一 worker
	block := make(chan struct{})
	go func() {
		_, _ = p.Submit(context.Background(), func() []string {
			<-block
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Submit(ctx, func() []string { return []string{"late"} })
	if err != context.DeadlineExceeded {
		t.Fatalf("Submit on busy pool = %v, want DeadlineExceeded", err)
	}
	close(block)
}
