package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidateOnlyTouchesOneParking(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	for _, k := range []string{"cache:p1:aaa", "cache:p1:bbb", "cache:p12:ccc", "cache:p2:ddd", "other:p1:eee"} {
		require.NoError(t, mr.Set(k, "x"))
	}

	inv := NewInvalidator(rdb, "cache")
	require.NoError(t, inv.Invalidate(context.Background(), 1))

	assert.False(t, mr.Exists("cache:p1:aaa"))
	assert.False(t, mr.Exists("cache:p1:bbb"))
	assert.True(t, mr.Exists("cache:p12:ccc"))
	assert.True(t, mr.Exists("cache:p2:ddd"))
	assert.True(t, mr.Exists("other:p1:eee"))
}

func TestNilInvalidatorIsNoop(t *testing.T) {
	inv := NewInvalidator(nil, "cache")
	assert.Nil(t, inv)
	assert.NoError(t, inv.Invalidate(context.Background(), 1))
}
