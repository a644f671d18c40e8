package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduper_ShouldProcess(t *testing.T) {
	d := New(time.Minute, 100)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))

	now = now.Add(2 * time.Minute)
	assert.True(t, d.ShouldProcess("a"), "expired ids are processed again")
}

func TestDeduper_ShouldProcessMessage(t *testing.T) {
	d := New(0, 0)
	p := []byte(`{"crop":"Rice"}`)

	assert.True(t, d.ShouldProcessMessage("cropsense/request/522001", p))
	assert.False(t, d.ShouldProcessMessage("cropsense/request/522001", p))
	assert.True(t, d.ShouldProcessMessage("cropsense/request/507115", p))
	assert.True(t, d.ShouldProcessMessage("cropsense/request/507115", []byte(`{"crop":"Maize"}`)))
}

func TestDeduper_Bounded(t *testing.T) {
	d := New(time.Hour, 3)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		assert.True(t, d.ShouldProcess(id))
		now = now.Add(time.Second)
	}
	assert.Len(t, d.seen, 3)
	assert.True(t, d.ShouldProcess("a"), "oldest ids are evicted first")
	assert.False(t, d.ShouldProcess("e"))
}
