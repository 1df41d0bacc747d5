package compositor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAudioModeInitialIsFallback(t *testing.T) {
	m := newAudioModeMachine(5*time.Second, func() {}, func() {})
	assert.Equal(t, Fallback, m.mode)
}

func TestFallbackToPrimaryClearsFallbackQueue(t *testing.T) {
	cleared := false
	m := newAudioModeMachine(5*time.Second, func() { cleared = true }, func() {})

	m.step(true, time.Now())

	assert.Equal(t, Primary, m.mode)
	assert.True(t, cleared)
}

func TestPrimaryDropEntersGrace(t *testing.T) {
	m := newAudioModeMachine(5*time.Second, func() {}, func() {})
	now := time.Now()
	m.step(true, now)
	require := assert.New(t)
	require.Equal(Primary, m.mode)

	m.step(false, now.Add(time.Millisecond))
	require.Equal(Grace, m.mode)
	require.Equal(now.Add(time.Millisecond), m.droppedAt)
}

func TestGraceReconnectReturnsToPrimary(t *testing.T) {
	graceCleared := false
	m := newAudioModeMachine(5*time.Second, func() {}, func() { graceCleared = true })
	now := time.Now()
	m.step(true, now)
	m.step(false, now)
	assert.True(t, graceCleared)

	m.step(true, now.Add(time.Second))
	assert.Equal(t, Primary, m.mode)
}

func TestGraceExpiresToFallback(t *testing.T) {
	m := newAudioModeMachine(5*time.Second, func() {}, func() {})
	now := time.Now()
	m.step(true, now)
	m.step(false, now)

	m.step(false, now.Add(4*time.Second))
	assert.Equal(t, Grace, m.mode, "still within grace period")

	m.step(false, now.Add(6*time.Second))
	assert.Equal(t, Fallback, m.mode)
}

func TestZeroGracePeriodEntersFallbackImmediately(t *testing.T) {
	m := newAudioModeMachine(0, func() {}, func() {})
	now := time.Now()
	m.step(true, now)
	m.step(false, now)

	m.step(false, now.Add(time.Nanosecond))
	assert.Equal(t, Fallback, m.mode)
}

func TestInfiniteGracePeriodNeverExpires(t *testing.T) {
	m := newAudioModeMachine(365*24*time.Hour, func() {}, func() {})
	now := time.Now()
	m.step(true, now)
	m.step(false, now)

	m.step(false, now.Add(30*24*time.Hour))
	assert.Equal(t, Grace, m.mode)
}
