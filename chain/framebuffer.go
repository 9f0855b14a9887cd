package chain

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	preset "github.com/glemu/glvideo/preset"
)

// Framebuffer owns one render-target image and its framebuffer binding. It
// can be resized in place and optionally carries a mip chain.
type Framebuffer struct {
	image uint32
	fbo   uint32

	size      Size
	format    uint32
	maxLevels int
	levels    int
}

// blitFBO is a scratch read framebuffer shared by all copies. Rendering is
// single threaded on the context thread, so one is enough.
var blitFBO uint32

func newFramebuffer(size Size, format uint32, maxLevels int) (*Framebuffer, error) {
	f := &Framebuffer{
		format:    format,
		maxLevels: maxLevels,
	}
	if err := f.allocate(size); err != nil {
		return nil, err
	}
	return f, nil
}

// setSize is a no-op when neither size nor format changes; otherwise the old
// image is released and a new one allocated. A format of 0 keeps the current
// format.
func (f *Framebuffer) setSize(size Size, format uint32) error {
	if format == 0 {
		format = f.format
	}
	if f.size == size && f.format == format {
		return nil
	}
	f.format = format
	f.release()
	return f.allocate(size)
}

func (f *Framebuffer) allocate(size Size) error {
	if size.empty() {
		return fmt.Errorf("framebuffer allocation with empty size %dx%d", size.Width, size.Height)
	}
	f.size = size

	f.levels = 1
	if f.maxLevels > 1 {
		f.levels = numMipLevels(size.Width, size.Height)
		if f.levels > f.maxLevels {
			f.levels = f.maxLevels
		}
	}

	format, xtype := uploadFormat(f.format)

	gl.GenTextures(1, &f.image)
	gl.BindTexture(gl.TEXTURE_2D, f.image)
	gl.TexImage2D(gl.TEXTURE_2D, 0, int32(f.format),
		int32(size.Width), int32(size.Height), 0, format, xtype, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, int32(f.levels-1))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenFramebuffers(1, &f.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, f.image, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		f.release()
		return fmt.Errorf("framebuffer %dx%d is not complete (status 0x%x)", size.Width, size.Height, status)
	}
	return nil
}

func (f *Framebuffer) release() {
	if f.image != 0 {
		gl.DeleteTextures(1, &f.image)
		f.image = 0
	}
	if f.fbo != 0 {
		gl.DeleteFramebuffers(1, &f.fbo)
		f.fbo = 0
	}
}

// clear fills level 0 with transparent black.
func (f *Framebuffer) clear() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.fbo)
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// copyFrom blits the source texture's content into this framebuffer. Used to
// seed history and feedback buffers without a full render pass.
func (f *Framebuffer) copyFrom(src Texture) {
	if blitFBO == 0 {
		gl.GenFramebuffers(1, &blitFBO)
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, blitFBO)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, src.Image, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, f.fbo)

	w := src.Width
	if f.size.Width < w {
		w = f.size.Width
	}
	h := src.Height
	if f.size.Height < h {
		h = f.size.Height
	}
	gl.BlitFramebuffer(0, 0, int32(w), int32(h), 0, 0, int32(w), int32(h),
		gl.COLOR_BUFFER_BIT, gl.NEAREST)

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
}

// generateMips rebuilds the mip chain after the base level was rendered.
// No-op for single-level framebuffers.
func (f *Framebuffer) generateMips() {
	if f.levels <= 1 {
		return
	}
	gl.BindTexture(gl.TEXTURE_2D, f.image)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

// texture returns a handle to this framebuffer's content with the given
// sampler state.
func (f *Framebuffer) texture(filter, mipFilter preset.Filter, wrap preset.Wrap) Texture {
	if f.levels <= 1 {
		mipFilter = preset.FilterUnspec
	}
	return Texture{
		Image:     f.image,
		Width:     f.size.Width,
		Height:    f.size.Height,
		Filter:    filter,
		MipFilter: mipFilter,
		Wrap:      wrap,
	}
}

func (f *Framebuffer) destroy() {
	f.release()
}
