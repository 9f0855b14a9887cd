package video

import (
	"fmt"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	chain "github.com/glemu/glvideo/chain"
)

// numCapturePBOs is the readback ring depth; mapping the oldest buffer while
// the newest fills keeps ReadPixels from stalling the pipeline.
const numCapturePBOs = 3

// captureRing streams the presented viewport back to the CPU for recording.
// Results lag the kicked frame by numCapturePBOs-1 frames.
type captureRing struct {
	pbos   [numCapturePBOs]uint32
	index  int
	primed int
	size   chain.Size
	buf    []byte
}

func newCaptureRing() *captureRing {
	c := &captureRing{}
	gl.GenBuffers(numCapturePBOs, &c.pbos[0])
	return c
}

func (c *captureRing) resize(size chain.Size) {
	if c.size == size {
		return
	}
	for _, pbo := range c.pbos {
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, pbo)
		gl.BufferData(gl.PIXEL_PACK_BUFFER, size.Width*size.Height*4, nil, gl.STREAM_READ)
	}
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	c.size = size
	c.buf = make([]byte, size.Width*size.Height*4)
	c.primed = 0
}

// read kicks an async readback of the viewport into the current slot and
// returns the pixels of the oldest completed one. It returns nil until the
// ring has filled after a start or resize.
func (c *captureRing) read(vp chain.Viewport) ([]byte, error) {
	c.resize(chain.Size{Width: vp.Width, Height: vp.Height})

	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, c.pbos[c.index])
	gl.ReadPixels(int32(vp.X), int32(vp.Y), int32(vp.Width), int32(vp.Height),
		gl.RGBA, gl.UNSIGNED_BYTE, nil)

	var out []byte
	if c.primed >= numCapturePBOs-1 {
		oldest := (c.index + 1) % numCapturePBOs
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, c.pbos[oldest])
		ptr := gl.MapBufferRange(gl.PIXEL_PACK_BUFFER, 0, len(c.buf), gl.MAP_READ_BIT)
		if ptr == nil {
			gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
			return nil, fmt.Errorf("failed to map capture buffer")
		}
		copy(c.buf, unsafeSlice(ptr, len(c.buf)))
		gl.UnmapBuffer(gl.PIXEL_PACK_BUFFER)
		out = c.buf
	} else {
		c.primed++
	}

	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	c.index = (c.index + 1) % numCapturePBOs
	return out, nil
}

func unsafeSlice(ptr unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}

func (c *captureRing) destroy() {
	gl.DeleteBuffers(numCapturePBOs, &c.pbos[0])
	c.pbos = [numCapturePBOs]uint32{}
}
