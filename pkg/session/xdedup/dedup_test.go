package xdedup

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xadmin/pkg/session/xapierr"
)

func TestKey(t *testing.T) {
	t.Run("param order does not matter", func(t *testing.T) {
		a := Key("get", "/api", "/system/user/list", url.Values{"b": {"2"}, "a": {"1"}}, nil)
		b := Key("GET", "/api", "/system/user/list", url.Values{"a": {"1"}, "b": {"2"}}, nil)
		assert.Equal(t, a, b)
		assert.Equal(t, "GET:/api/system/user/list?a=1&b=2:", a)
	})

	t.Run("json field order does not matter", func(t *testing.T) {
		a := Key("POST", "", "/x", nil, []byte(`{"b":1,"a":{"d":2,"c":3}}`))
		b := Key("POST", "", "/x", nil, []byte(` {"a":{"c":3,"d":2},"b":1}`))
		assert.Equal(t, a, b)
	})

	t.Run("different body differs", func(t *testing.T) {
		a := Key("POST", "", "/x", nil, []byte(`{"a":1}`))
		b := Key("POST", "", "/x", nil, []byte(`{"a":2}`))
		assert.NotEqual(t, a, b)
	})

	t.Run("large integers keep precision", func(t *testing.T) {
		a := Key("POST", "http://x", "/system/user", nil, []byte(`{"id":9007199254740993}`))
		b := Key("POST", "http://x", "/system/user", nil, []byte(`{"id":9007199254740992}`))
		assert.NotEqual(t, a, b)
		assert.Equal(t, `POST:http://x/system/user?:{"id":9007199254740993}`, a)
	})

	t.Run("trailing data is not json", func(t *testing.T) {
		assert.Equal(t, `PUT:/x?:{"a":1} {"b":2}`, Key("PUT", "", "/x", nil, []byte(`{"a":1} {"b":2}`)))
	})

	t.Run("non json body kept", func(t *testing.T) {
		assert.Equal(t, "PUT:/x?:a=1&b=2", Key("PUT", "", "/x", nil, []byte("a=1&b=2")))
	})

	t.Run("fingerprint is stable", func(t *testing.T) {
		k := Key("GET", "", "/x", nil, nil)
		assert.Equal(t, Fingerprint(k), Fingerprint(k))
		assert.NotEmpty(t, Fingerprint(k))
	})
}

func TestDeduplicator_LastWins(t *testing.T) {
	d := New()
	key := "GET:/list?:"

	ctxA, releaseA := d.Acquire(context.Background(), key)
	ctxB, releaseB := d.Acquire(context.Background(), key)

	require.Error(t, ctxA.Err(), "first request must be canceled")
	assert.True(t, errors.Is(context.Cause(ctxA), xapierr.ErrCanceled))
	assert.NoError(t, ctxB.Err())
	assert.Equal(t, 1, d.Len())

	// 被取代的请求结束时不能删除新条目
	releaseA()
	assert.True(t, d.Has(key))
	assert.NoError(t, ctxB.Err())

	releaseB()
	assert.False(t, d.Has(key))
	assert.Equal(t, 0, d.Len())

	// 重复释放无副作用
	releaseB()
	assert.Equal(t, 0, d.Len())
}

func TestDeduplicator_DifferentKeys(t *testing.T) {
	d := New()
	ctxA, releaseA := d.Acquire(context.Background(), "a")
	ctxB, releaseB := d.Acquire(context.Background(), "b")
	defer releaseA()
	defer releaseB()

	assert.NoError(t, ctxA.Err())
	assert.NoError(t, ctxB.Err())
	assert.Equal(t, 2, d.Len())
}

func TestDeduplicator_CancelAll(t *testing.T) {
	d := New()
	ctxA, releaseA := d.Acquire(context.Background(), "a")
	ctxB, releaseB := d.Acquire(context.Background(), "b")
	defer releaseA()
	defer releaseB()

	assert.Equal(t, 2, d.CancelAll())
	assert.ErrorIs(t, context.Cause(ctxA), xapierr.ErrCanceled)
	assert.ErrorIs(t, context.Cause(ctxB), xapierr.ErrCanceled)
	assert.Equal(t, 0, d.Len())

	assert.False(t, d.Cancel("a"))
}

func TestDeduplicator_ParentCancel(t *testing.T) {
	d := New()
	parent, cancel := context.WithCancel(context.Background())
	ctx, release := d.Acquire(parent, "a")
	defer release()

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
}

func TestDeduplicator_ConcurrentAtMostOne(t *testing.T) {
	d := New()
	const n = 50

	var wg sync.WaitGroup
	releases := make(chan Release, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release := d.Acquire(context.Background(), "same")
			releases <- release
		}()
	}
	wg.Wait()
	close(releases)

	assert.Equal(t, 1, d.Len())
	for release := range releases {
		release()
	}
	assert.Equal(t, 0, d.Len())
}
