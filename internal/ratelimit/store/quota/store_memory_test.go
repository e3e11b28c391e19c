package quota

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailguard/internal/ratelimit/models"
)

func increment(c *models.UsageCounter) error {
	c.Count++
	return nil
}

func TestInMemoryCounterStore(t *testing.T) {
	ctx := context.Background()
	key := models.UsageKey{TenantID: "acme", Period: "2025-06"}

	t.Run("creates counter on first update", func(t *testing.T) {
		store := New()
		c, err := store.Update(ctx, key, increment)
		require.NoError(t, err)
		assert.Equal(t, 1, c.Count)
		assert.Equal(t, key, c.Key)
	})

	t.Run("failed update leaves counter unchanged", func(t *testing.T) {
		store := New()
		_, _ = store.Update(ctx, key, increment)
		c, err := store.Update(ctx, key, func(c *models.UsageCounter) error {
			c.Count = 999
			return errors.New("abort")
		})
		require.Error(t, err)
		assert.Equal(t, 1, c.Count)
	})

	t.Run("keys and delete", func(t *testing.T) {
		store := New()
		other := models.UsageKey{TenantID: "globex", Period: "2025-06"}
		_, _ = store.Update(ctx, key, increment)
		_, _ = store.Update(ctx, other, increment)
		assert.ElementsMatch(t, []models.UsageKey{key, other}, store.Keys())

		store.Delete(key)
		assert.Equal(t, []models.UsageKey{other}, store.Keys())
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		store := New()
		var wg sync.WaitGroup
		for range 100 {
			wg.Go(func() {
				_, err := store.Update(ctx, key, increment)
				assert.NoError(t, err)
			})
		}
		wg.Wait()

		c, err := store.Update(ctx, key, func(*models.UsageCounter) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, 100, c.Count)
	})
}
