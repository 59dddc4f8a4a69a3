package behavior

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func inline(fn func()) bool {
	fn()
	return true
}

func TestSlots_ArmReplaces(t *testing.T) {
	clock := newFakeClock()
	s := newSlots(clock, inline)

	var fired []string
	s.Arm("lila", time.Second, func() { fired = append(fired, "first") })
	s.Arm("lila", 2*time.Second, func() { fired = append(fired, "second") })
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, clock.Pending(), "the replaced timer is stopped")

	clock.Advance(time.Second)
	assert.Empty(t, fired)

	clock.Advance(time.Second)
	assert.Equal(t, []string{"second"}, fired)
	assert.False(t, s.Pending("lila"))
}

func TestSlots_IndependentKeys(t *testing.T) {
	clock := newFakeClock()
	s := newSlots(clock, inline)

	var fired []string
	s.Arm("lila", time.Second, func() { fired = append(fired, "lila") })
	s.Arm("harlan", 3*time.Second, func() { fired = append(fired, "harlan") })

	clock.Advance(time.Second)
	assert.Equal(t, []string{"lila"}, fired)
	assert.True(t, s.Pending("harlan"))
}

func TestSlots_Cancel(t *testing.T) {
	clock := newFakeClock()
	s := newSlots(clock, inline)

	fired := false
	s.Arm("lila", time.Second, func() { fired = true })
	s.Cancel("lila")
	s.Cancel("nobody")

	clock.Advance(time.Minute)
	assert.False(t, fired)
	assert.Equal(t, 0, s.Len())
}

func TestSlots_StaleFireIsIgnored(t *testing.T) {
	clock := newFakeClock()
	var queued []func()
	s := newSlots(clock, func(fn func()) bool {
		queued = append(queued, fn)
		return true
	})

	var fired []string
	s.Arm("lila", time.Second, func() { fired = append(fired, "old") })
	clock.Advance(time.Second) // fire is queued but not run yet
	s.Arm("lila", time.Second, func() { fired = append(fired, "new") })

	for _, fn := range queued {
		fn()
	}
	assert.Empty(t, fired, "the queued fire belongs to a replaced arm")
	assert.True(t, s.Pending("lila"))
}

func TestSlots_CancelAll(t *testing.T) {
	clock := newFakeClock()
	s := newSlots(clock, inline)
	for _, k := range []string{"a", "b", "c"} {
		s.Arm(k, time.Second, func() { t.Fatalf("%s fired after CancelAll", k) })
	}

	s.CancelAll()
	clock.Advance(time.Minute)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, clock.Pending())
}
