package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendAndIndices(t *testing.T) {
	s := New[int]()
	assert.Equal(t, int64(-1), s.FirstIndex())
	assert.Equal(t, int64(-1), s.LastIndex())

	assert.Equal(t, int64(0), s.Append(10))
	assert.Equal(t, int64(1), s.Append(20))
	assert.Equal(t, int64(0), s.FirstIndex())
	assert.Equal(t, int64(1), s.LastIndex())

	v, ok := s.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestDropFirstAndLast(t *testing.T) {
	s := New[string]()
	s.Append("a")
	s.Append("b")
	s.Append("c")

	v, ok := s.DropFirst()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, int64(1), s.FirstIndex())

	v, ok = s.DropLast()
	assert.True(t, ok)
	assert.Equal(t, "c", v)
	assert.Equal(t, int64(1), s.LastIndex())
	assert.Equal(t, 1, s.Size())
}

func TestSingleStepBoundary(t *testing.T) {
	s := New[int]()
	s.Append(42)
	assert.Equal(t, int64(0), s.FirstIndex())
	assert.Equal(t, int64(0), s.LastIndex())

	v, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestGetOutOfRange(t *testing.T) {
	s := New[int]()
	s.Append(1)
	_, ok := s.Get(5)
	assert.False(t, ok)
}

func TestDropOnEmpty(t *testing.T) {
	s := New[int]()
	_, ok := s.DropFirst()
	assert.False(t, ok)
	_, ok = s.DropLast()
	assert.False(t, ok)
}
