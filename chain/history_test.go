package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateRight(t *testing.T) {
	a := &Framebuffer{}
	b := &Framebuffer{}
	c := &Framebuffer{}

	frames := []*Framebuffer{a, b, c}
	rotateRight(frames)
	assert.Equal(t, []*Framebuffer{c, a, b}, frames)
	rotateRight(frames)
	assert.Equal(t, []*Framebuffer{b, c, a}, frames)
	rotateRight(frames)
	assert.Equal(t, []*Framebuffer{a, b, c}, frames)

	single := []*Framebuffer{a}
	rotateRight(single)
	assert.Equal(t, []*Framebuffer{a}, single)
}

func TestHistoryRingPush(t *testing.T) {
	h := newHistoryRing(3)
	require.Equal(t, 3, h.capacity())

	a := &Framebuffer{}
	b := &Framebuffer{}
	c := &Framebuffer{}
	h.frames[0], h.frames[1], h.frames[2] = a, b, c

	// Each push hands back the slot for the newest frame, with older frames
	// shifted toward the tail.
	assert.Same(t, c, h.push())
	assert.Same(t, b, h.push())
	assert.Same(t, a, h.push())

	// Full ring keeps rotating.
	assert.Same(t, c, h.push())
	assert.Equal(t, 3, h.capacity())
}

func TestHistoryRingEmpty(t *testing.T) {
	h := newHistoryRing(0)
	assert.Equal(t, 0, h.capacity())
	assert.Nil(t, h.push())
}
