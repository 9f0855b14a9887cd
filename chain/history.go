package chain

// historyRing holds the previous original input frames, newest first.
// Entry 0 backs the OriginalHistory1 semantic.
type historyRing struct {
	frames []*Framebuffer
}

// Slots start nil; the chain allocates them once the input size is known.
func newHistoryRing(capacity int) *historyRing {
	return &historyRing{frames: make([]*Framebuffer, capacity)}
}

func (h *historyRing) capacity() int {
	return len(h.frames)
}

// push makes the oldest slot current and reports the framebuffer the caller
// should copy the just-presented frame into.
func (h *historyRing) push() *Framebuffer {
	if len(h.frames) == 0 {
		return nil
	}
	rotateRight(h.frames)
	return h.frames[0]
}

func (h *historyRing) destroy() {
	for _, f := range h.frames {
		if f != nil {
			f.destroy()
		}
	}
	h.frames = nil
}

// rotateRight moves the last element to the front, shifting the rest down.
func rotateRight(frames []*Framebuffer) {
	if len(frames) < 2 {
		return
	}
	last := frames[len(frames)-1]
	copy(frames[1:], frames[:len(frames)-1])
	frames[0] = last
}
