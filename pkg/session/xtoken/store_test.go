package xtoken

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokenPair(t *testing.T) {
	p := TokenPair{AccessToken: "tok1", RefreshToken: "ref1"}
	assert.True(t, p.IsAuthed())
	assert.False(t, TokenPair{RefreshToken: "ref1"}.IsAuthed())
	assert.True(t, TokenPair{}.IsZero())

	assert.Equal(t, TokenPair{AccessToken: "tok2", RefreshToken: "ref1"}, p.WithAccess("tok2", ""))
	assert.Equal(t, TokenPair{AccessToken: "tok2", RefreshToken: "ref2"}, p.WithAccess("tok2", "ref2"))
}

func TestParsePair(t *testing.T) {
	tests := []struct {
		name string
		body string
		want TokenPair
	}{
		{"camel", `{"accessToken":"tok1","refreshToken":"ref1"}`, TokenPair{AccessToken: "tok1", RefreshToken: "ref1"}},
		{"snake", `{"access_token":"tok1","refresh_token":"ref1"}`, TokenPair{AccessToken: "tok1", RefreshToken: "ref1"}},
		{"camel wins", `{"accessToken":"a","access_token":"b"}`, TokenPair{AccessToken: "a"}},
		{"blank camel falls back", `{"accessToken":" ","access_token":"b"}`, TokenPair{AccessToken: "b"}},
		{"no refresh", `{"accessToken":"tok2"}`, TokenPair{AccessToken: "tok2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePair([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParsePair([]byte(`"tok"`))
	assert.Error(t, err)
}

func TestStore_HydrateSingleFlight(t *testing.T) {
	backend := &mockBackend{
		pair: TokenPair{AccessToken: "tok1", RefreshToken: "ref1"},
		gate: make(chan struct{}),
	}
	store := NewStore(backend, WithLogger(quietLogger()))
	assert.False(t, store.Hydrated())

	var wg sync.WaitGroup
	results := make(chan TokenPair, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Load(context.Background())
		}()
	}
	close(backend.gate)
	wg.Wait()
	close(results)

	for got := range results {
		assert.Equal(t, "tok1", got.AccessToken)
	}
	assert.LessOrEqual(t, backend.loads.Load(), int32(10))
	assert.True(t, store.Hydrated())

	// 已加载后不再访问后端
	before := backend.loads.Load()
	store.Hydrate(context.Background())
	assert.Equal(t, before, backend.loads.Load())
}

func TestStore_HydrateOnce(t *testing.T) {
	backend := &mockBackend{pair: TokenPair{AccessToken: "tok1"}}
	store := NewStore(backend)

	store.Hydrate(context.Background())
	store.Hydrate(context.Background())
	assert.Equal(t, int32(1), backend.loads.Load())
	assert.True(t, store.IsAuthed())
}

func TestStore_LoadErrorMeansSignedOut(t *testing.T) {
	backend := &mockBackend{loadErr: errors.New("disk gone")}
	store := NewStore(backend, WithLogger(quietLogger()))

	pair := store.Load(context.Background())
	assert.True(t, pair.IsZero())
	assert.False(t, store.IsAuthed())
	assert.True(t, store.Hydrated())
}

func TestStore_SaveBeforeHydrateWins(t *testing.T) {
	backend := &mockBackend{pair: TokenPair{AccessToken: "old"}}
	store := NewStore(backend)

	store.Save(context.Background(), TokenPair{AccessToken: "new", RefreshToken: "r"})
	store.Hydrate(context.Background())
	assert.Equal(t, "new", store.AccessToken())
	assert.Equal(t, int32(0), backend.loads.Load())
}

func TestStore_SaveAndClear(t *testing.T) {
	backend := &mockBackend{}
	store := NewStore(backend)

	store.Save(context.Background(), TokenPair{AccessToken: "tok1", RefreshToken: "ref1"})
	assert.Equal(t, "tok1", store.AccessToken())
	assert.Equal(t, "ref1", store.RefreshToken())
	assert.Equal(t, TokenPair{AccessToken: "tok1", RefreshToken: "ref1"}, backend.stored())

	store.Clear(context.Background())
	assert.False(t, store.IsAuthed())
	assert.Empty(t, store.RefreshToken())
	assert.True(t, backend.stored().IsZero())
}

func TestStore_ClearDuringSlowSaveStaysSignedOut(t *testing.T) {
	backend := &mockBackend{
		pair:        TokenPair{AccessToken: "tok1", RefreshToken: "ref1"},
		saveGate:    make(chan struct{}),
		saveStarted: make(chan struct{}, 1),
	}
	store := NewStore(backend)
	store.Hydrate(context.Background())

	saved := make(chan struct{})
	go func() {
		store.Save(context.Background(), TokenPair{AccessToken: "tok2", RefreshToken: "ref1"})
		close(saved)
	}()
	<-backend.saveStarted

	cleared := make(chan struct{})
	go func() {
		store.Clear(context.Background())
		close(cleared)
	}()
	require.Eventually(t, func() bool { return !store.IsAuthed() }, time.Second, time.Millisecond)

	close(backend.saveGate)
	<-saved
	<-cleared

	assert.False(t, store.IsAuthed())
	assert.True(t, backend.stored().IsZero())

	restarted := NewStore(backend)
	restarted.Hydrate(context.Background())
	assert.False(t, restarted.IsAuthed(), "logout must survive a restart")
}

func TestStore_SupersededSaveSkipsBackend(t *testing.T) {
	backend := &mockBackend{}
	store := NewStore(backend)

	gen := store.set(TokenPair{AccessToken: "stale"})
	store.Clear(context.Background())
	store.persist(gen, func() error {
		return backend.Save(context.Background(), TokenPair{AccessToken: "stale"})
	}, "persist")

	assert.Equal(t, int32(0), backend.saves.Load())
	assert.True(t, backend.stored().IsZero())
}

func TestStore_PersistErrorSwallowed(t *testing.T) {
	backend := &mockBackend{saveErr: errors.New("read-only"), clearErr: errors.New("read-only")}
	store := NewStore(backend, WithLogger(quietLogger()))

	store.Save(context.Background(), TokenPair{AccessToken: "tok1"})
	assert.Equal(t, "tok1", store.AccessToken(), "memory updated even when persistence fails")

	store.Clear(context.Background())
	assert.Empty(t, store.AccessToken())
}

func TestStore_OnChange(t *testing.T) {
	store := NewStore(nil)

	var got []TokenPair
	unsubscribe := store.OnChange(func(p TokenPair) { got = append(got, p) })

	store.Save(context.Background(), TokenPair{AccessToken: "a"})
	store.Clear(context.Background())
	unsubscribe()
	store.Save(context.Background(), TokenPair{AccessToken: "b"})

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].AccessToken)
	assert.True(t, got[1].IsZero())

	assert.NotNil(t, store.OnChange(nil))
}
