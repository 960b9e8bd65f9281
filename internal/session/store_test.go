package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreateGetDelete(t *testing.T) {
	store := NewStore(devSource(), time.Hour, clockwork.NewFakeClock())

	st := store.Create()
	got, ok := store.Get(st.ID())
	require.True(t, ok)
	assert.Same(t, st, got)
	assert.Equal(t, 1, store.Len())

	var evicted []string
	store.OnEvict(func(id string) { evicted = append(evicted, id) })
	store.Delete(st.ID())

	_, ok = store.Get(st.ID())
	assert.False(t, ok)
	assert.Equal(t, []string{st.ID()}, evicted)
}

func TestStoreExpiresIdleSessionsOnGet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(devSource(), time.Hour, clock)
	st := store.Create()

	clock.Advance(59 * time.Minute)
	_, ok := store.Get(st.ID())
	require.True(t, ok, "use refreshes the idle timer")

	clock.Advance(59 * time.Minute)
	_, ok = store.Get(st.ID())
	require.True(t, ok)

	clock.Advance(61 * time.Minute)
	_, ok = store.Get(st.ID())
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestStoreSweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(devSource(), time.Hour, clock)
	old := store.Create()
	clock.Advance(30 * time.Minute)
	fresh := store.Create()
	clock.Advance(31 * time.Minute)

	assert.Equal(t, 1, store.Sweep())

	_, ok := store.Get(old.ID())
	assert.False(t, ok)
	_, ok = store.Get(fresh.ID())
	assert.True(t, ok)
}

func TestStoreRunSweepsOnTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(devSource(), time.Hour, clock)
	store.Create()

	var mu sync.Mutex
	var evicted int
	store.OnEvict(func(string) { mu.Lock(); evicted++; mu.Unlock() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Minute)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Hour)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return evicted == 1
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestStoreDeleteSignsOut(t *testing.T) {
	store := NewStore(devSource(), time.Hour, clockwork.NewFakeClock())
	st := signedInFromStore(t, store)
	require.True(t, st.Gate().Authenticated())

	store.Delete(st.ID())
	assert.False(t, st.Gate().Authenticated())
}

func signedInFromStore(t *testing.T, store *Store) *State {
	t.Helper()
	st := store.Create()
	oauthState, err := st.BeginSignIn()
	require.NoError(t, err)
	require.NoError(t, st.SignIn(context.Background(), oauthState, "dev-consent"))
	return st
}
