package postgres_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	postgres "github.com/okonomi/yoyaku-go/internal/repository/postgres"
)

func TestCoversSlot(t *testing.T) {
	day := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)
	keys := []postgres.DateKey{
		{ResourceID: 1, Date: day},
		{ResourceID: 1, Date: day.AddDate(0, 0, 3)},
	}

	t.Run("covered slot", func(t *testing.T) {
		assert.True(t, postgres.CoversSlot(keys, 1, day))
		assert.True(t, postgres.CoversSlot(keys, 1, day.AddDate(0, 0, 3)))
	})

	t.Run("time of day is irrelevant", func(t *testing.T) {
		assert.True(t, postgres.CoversSlot(keys, 1, day.Add(17*time.Hour)))
	})

	t.Run("moved date is not covered", func(t *testing.T) {
		assert.False(t, postgres.CoversSlot(keys, 1, day.AddDate(0, 0, 1)))
	})

	t.Run("other resource is not covered", func(t *testing.T) {
		assert.False(t, postgres.CoversSlot(keys, 2, day))
	})

	t.Run("no keys", func(t *testing.T) {
		assert.False(t, postgres.CoversSlot(nil, 1, day))
	})
}
