package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingCache struct{ n atomic.Int32 }

func (c *countingCache) Sweep() int { c.n.Add(1); return 1 }

func TestEvery_RunsUntilCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(ctx, nil)

	c := &countingCache{}
	r.Every(5*time.Millisecond, "sweep", CacheSweep(c, zap.NewNop()))

	deadline := time.Now().Add(2 * time.Second)
	for c.n.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("задача не запускалась")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	time.Sleep(20 * time.Millisecond)
	stopped := c.n.Load()
	time.Sleep(30 * time.Millisecond)
	if c.n.Load() != stopped {
		t.Fatal("задача продолжает работать после отмены")
	}
}

func TestEvery_ErrorDoesNotStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(ctx, nil)

	var calls atomic.Int32
	r.Every(5*time.Millisecond, "probe", StoreProbe(func(context.Context) error {
		calls.Add(1)
		return errors.New("down")
	}))

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("после ошибки задача остановилась, вызовов: %d", calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEvery_DisabledInterval(t *testing.T) {
	r := New(context.Background(), nil)
	c := &countingCache{}
	r.Every(0, "sweep", CacheSweep(c, zap.NewNop()))
	time.Sleep(20 * time.Millisecond)
	if c.n.Load() != 0 {
		t.Fatal("нулевой интервал должен отключать задачу")
	}
}
