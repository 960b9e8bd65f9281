package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadyResolvesOnce(t *testing.T) {
	r := NewReady()
	assert.ErrorIs(t, r.Err(), ErrNotReady)

	assert.True(t, r.Resolve(nil))
	assert.False(t, r.Resolve(errors.New("late")))

	assert.NoError(t, r.Err())
	assert.NoError(t, r.Wait(context.Background()))
	select {
	case <-r.Done():
	default:
		t.Fatal("Done must be closed after Resolve")
	}
}

func TestReadyCarriesInitError(t *testing.T) {
	boom := errors.New("bad client json")
	r := NewReady()
	r.Resolve(boom)

	assert.ErrorIs(t, r.Wait(context.Background()), boom)
}

func TestReadyWaitTimesOut(t *testing.T) {
	r := NewReady()
	start := time.Now()

	err := r.WaitTimeout(context.Background(), 20*time.Millisecond)

	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReadyWaitUnblocksOnResolve(t *testing.T) {
	r := NewReady()
	go func() {
		time.Sleep(5 * time.Millisecond)
		r.Resolve(nil)
	}()
	assert.NoError(t, r.WaitTimeout(context.Background(), time.Second))
}
