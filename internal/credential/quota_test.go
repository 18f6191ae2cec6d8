package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuotaManagerMarkAndExpire(t *testing.T) {
	q := NewQuotaManager(nil)

	q.MarkExceeded("a", "rate limit", 50*time.Millisecond)
	assert.True(t, q.IsExceeded("a"))
	assert.Equal(t, 1, q.ExceededCount())

	time.Sleep(60 * time.Millisecond)
	assert.False(t, q.IsExceeded("a"))
	assert.Equal(t, 0, q.ExceededCount())
}

func TestQuotaManagerDefaultCooldown(t *testing.T) {
	q := NewQuotaManager(nil)

	q.MarkExceeded("a", "quota", 0)
	assert.True(t, q.IsExceeded("a"))
}

func TestQuotaManagerClear(t *testing.T) {
	q := NewQuotaManager(nil)

	q.MarkExceeded("a", "quota", time.Hour)
	q.Clear("a")
	assert.False(t, q.IsExceeded("a"))
}

func TestQuotaManagerCleanup(t *testing.T) {
	q := NewQuotaManager(nil)

	q.MarkExceeded("expired", "quota", time.Nanosecond)
	q.MarkExceeded("active", "quota", time.Hour)
	time.Sleep(time.Millisecond)

	assert.Equal(t, 1, q.Cleanup())
	assert.False(t, q.IsExceeded("expired"))
	assert.True(t, q.IsExceeded("active"))
}
