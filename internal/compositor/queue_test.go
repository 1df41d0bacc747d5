package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleQueuePushAndFrameCount(t *testing.T) {
	q := newSampleQueue(2)
	q.Push([]float32{1, 2, 3, 4})
	assert.Equal(t, 2, q.FrameCount())
}

func TestSampleQueuePopFrameRemovesFromHead(t *testing.T) {
	q := newSampleQueue(2)
	q.Push([]float32{1, 2, 3, 4, 5, 6})
	frame := q.PopFrame(1)
	assert.Equal(t, []float32{1, 2}, frame)
	assert.Equal(t, 2, q.FrameCount())
}

func TestSampleQueueTrimOldestDropsHead(t *testing.T) {
	q := newSampleQueue(1)
	q.Push([]float32{1, 2, 3, 4, 5})
	q.TrimOldest(3)
	assert.Equal(t, []float32{3, 4, 5}, q.samples)
}

func TestSampleQueuePopAvailableZeroPadded(t *testing.T) {
	q := newSampleQueue(1)
	q.Push([]float32{1, 2})
	out := q.PopAvailableZeroPadded(4)
	assert.Equal(t, []float32{1, 2, 0, 0}, out)
	assert.Equal(t, 0, q.FrameCount())
}

func TestSampleQueueClear(t *testing.T) {
	q := newSampleQueue(2)
	q.Push([]float32{1, 2, 3, 4})
	q.Clear()
	assert.Equal(t, 0, q.FrameCount())
}
