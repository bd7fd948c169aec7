package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFOOrder(t *testing.T) {
	q := NewRingQueue[int](4)
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(i))
	}

	for i := 1; i <= 3; i++ {
		v, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.True(t, q.IsEmpty())
}

func TestRingQueueFullRejectsEnqueue(t *testing.T) {
	q := NewRingQueue[string](2)
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))
	assert.True(t, q.IsFull())
	assert.Error(t, q.Enqueue("c"))

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.NoError(t, q.Enqueue("c"))
}

func TestRingQueueWrapAround(t *testing.T) {
	q := NewRingQueue[int](3)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	_, err := q.Dequeue()
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(3))
	require.NoError(t, q.Enqueue(4))

	want := []int{2, 3, 4}
	for _, expected := range want {
		v, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, expected, v)
	}
}

func TestRingQueuePeekDoesNotConsume(t *testing.T) {
	q := NewRingQueue[int](2)
	require.NoError(t, q.Enqueue(7))

	v, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, q.Len())

	_, err = q.Dequeue()
	require.NoError(t, err)
	_, err = q.Peek()
	assert.Error(t, err)
}
