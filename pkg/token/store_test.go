package token

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every backend must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))
		assert.Equal(t, "", store.AccessToken(ctx))
		assert.Equal(t, "", store.RefreshToken(ctx))
		_, ok := store.Tokens(ctx)
		assert.False(t, ok)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		pair := Pair{Access: "access-1", Refresh: "refresh-1"}
		require.NoError(t, store.SetTokens(ctx, pair))

		assert.Equal(t, "access-1", store.AccessToken(ctx))
		assert.Equal(t, "refresh-1", store.RefreshToken(ctx))
		got, ok := store.Tokens(ctx)
		assert.True(t, ok)
		assert.Equal(t, pair, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.SetTokens(ctx, Pair{Access: "access-2", Refresh: "refresh-2"}))
		got, _ := store.Tokens(ctx)
		assert.Equal(t, Pair{Access: "access-2", Refresh: "refresh-2"}, got)
	})

	t.Run("EmptyAccessRejected", func(t *testing.T) {
		err := store.SetTokens(ctx, Pair{Refresh: "refresh-only"})
		assert.ErrorIs(t, err, ErrEmptyToken)
		assert.Equal(t, "access-2", store.AccessToken(ctx), "a rejected write leaves the old pair")
	})

	t.Run("IdempotentClear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))
		_, ok := store.Tokens(ctx)
		assert.False(t, ok)

		require.NoError(t, store.Clear(ctx))
		_, ok = store.Tokens(ctx)
		assert.False(t, ok)
	})

	t.Run("NoTornReads", func(t *testing.T) {
		const writers, rounds = 4, 25
		var wg sync.WaitGroup
		stop := make(chan struct{})
		torn := make(chan Pair, 1)

		go func() {
			for {
				select {
				case <-stop:
					return
				default:
				}
				pair, ok := store.Tokens(ctx)
				if !ok {
					continue
				}
				if pair.Access[len("access-"):] != pair.Refresh[len("refresh-"):] {
					select {
					case torn <- pair:
					default:
					}
				}
			}
		}()

		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < rounds; i++ {
					n := fmt.Sprintf("%d-%d", w, i)
					_ = store.SetTokens(ctx, Pair{Access: "access-" + n, Refresh: "refresh-" + n})
				}
			}(w)
		}
		wg.Wait()
		close(stop)

		select {
		case pair := <-torn:
			t.Fatalf("observed a mixed pair: %+v", pair)
		default:
		}
		require.NoError(t, store.Clear(ctx))
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestAccessExpiry(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		Subject:   "trader-1",
	}).SignedString([]byte("any-key"))
	require.NoError(t, err)

	got, ok := AccessExpiry(signed)
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	assert.True(t, ExpiresWithin(signed, time.Hour))
	assert.False(t, ExpiresWithin(signed, time.Minute))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).
		SignedString([]byte("any-key"))
	require.NoError(t, err)
	_, ok = AccessExpiry(noExp)
	assert.False(t, ok)

	_, ok = AccessExpiry("opaque-token")
	assert.False(t, ok)
	_, ok = AccessExpiry("")
	assert.False(t, ok)
	assert.False(t, ExpiresWithin("opaque-token", time.Hour))
}

func TestPairIsZero(t *testing.T) {
	assert.True(t, Pair{}.IsZero())
	assert.False(t, Pair{Access: "a"}.IsZero())
	assert.False(t, Pair{Refresh: "r"}.IsZero())
}
