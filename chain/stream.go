package chain

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// NumSyncIndices is the depth of the per-pass streamed vertex-buffer ring.
// Rotating through the ring keeps the CPU from rewriting a buffer a
// previously-submitted draw may still be reading.
const NumSyncIndices = 3

// quadStream owns the ring of streamed quad buffers for one pass. The quad
// is rewritten every frame, into whichever slot the current sync index
// selects.
type quadStream struct {
	vaos  [NumSyncIndices]uint32
	vbos  [NumSyncIndices]uint32
	index int
}

// Interleaved layout per vertex: vec2 position, vec2 texcoord.
const quadStride = 4 * 4

func newQuadStream() *quadStream {
	q := &quadStream{}
	gl.GenVertexArrays(NumSyncIndices, &q.vaos[0])
	gl.GenBuffers(NumSyncIndices, &q.vbos[0])
	for i := 0; i < NumSyncIndices; i++ {
		gl.BindVertexArray(q.vaos[i])
		gl.BindBuffer(gl.ARRAY_BUFFER, q.vbos[i])
		gl.BufferData(gl.ARRAY_BUFFER, 4*quadStride, nil, gl.STREAM_DRAW)
		gl.EnableVertexAttribArray(0)
		gl.EnableVertexAttribArray(1)
		gl.VertexAttribPointer(0, 2, gl.FLOAT, false, quadStride, gl.PtrOffset(0))
		gl.VertexAttribPointer(1, 2, gl.FLOAT, false, quadStride, gl.PtrOffset(8))
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return q
}

func (q *quadStream) setSyncIndex(index int) {
	q.index = index % NumSyncIndices
}

// draw streams the vertices into the current slot and issues the quad.
func (q *quadStream) draw(verts *[16]float32) {
	gl.BindVertexArray(q.vaos[q.index])
	gl.BindBuffer(gl.ARRAY_BUFFER, q.vbos[q.index])
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(&verts[0]), gl.STREAM_DRAW)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

func (q *quadStream) destroy() {
	gl.DeleteBuffers(NumSyncIndices, &q.vbos[0])
	gl.DeleteVertexArrays(NumSyncIndices, &q.vaos[0])
}

// quadVerts builds a unit quad as a triangle strip.
func quadVerts() [16]float32 {
	return [16]float32{
		// x, y, u, v
		0, 0, 0, 0,
		1, 0, 1, 0,
		0, 1, 0, 1,
		1, 1, 1, 1,
	}
}
