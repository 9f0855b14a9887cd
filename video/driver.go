// Package video presents emulated frames through the shader filter chain,
// handling viewport fitting, rotation, readback and recording.
package video

import (
	"fmt"
	"log"
	"math"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	mgl32 "github.com/go-gl/mathgl/mgl32"

	chain "github.com/glemu/glvideo/chain"
	compiler "github.com/glemu/glvideo/compiler"
	graphics "github.com/glemu/glvideo/graphics"
	options "github.com/glemu/glvideo/options"
	preset "github.com/glemu/glvideo/preset"
	record "github.com/glemu/glvideo/record"
)

// Driver is the GL video driver. It owns the filter chain, the streamed
// input texture ring and the optional capture and recording plumbing. All
// methods must run on the thread holding the GL context.
type Driver struct {
	opts *options.VideoOptions
	ctx  graphics.Context
	comp compiler.Compiler

	chain      *chain.FilterChain
	shaderPath string

	stream   *streamedTexture
	capture  *captureRing
	recorder *record.Recorder

	rotation   int
	aspect     float32
	forceRatio bool

	vp       chain.Viewport
	customVP *chain.Viewport

	syncIndex int
	overlay   func(msg string)
}

// New builds the driver against an already-current GL context. A shader
// preset that fails to load is reported but leaves the driver presenting
// through the pass-through chain; failing to build even that chain fails
// construction.
func New(opts *options.VideoOptions, ctx graphics.Context, comp compiler.Compiler) (*Driver, error) {
	d := &Driver{
		opts:       opts,
		ctx:        ctx,
		comp:       comp,
		rotation:   ((*opts.Rotation % 4) + 4) % 4,
		aspect:     float32(*opts.Aspect),
		forceRatio: *opts.ForceRatio,
	}

	if err := d.SetShader(*opts.ShaderPath); err != nil {
		if d.chain == nil {
			return nil, err
		}
		log.Printf("shader preset %q rejected: %v (presenting unfiltered)", *opts.ShaderPath, err)
	}

	d.stream = newStreamedTexture(*opts.RGB32)
	if *opts.Record {
		d.capture = newCaptureRing()
	}
	return d, nil
}

func (d *Driver) defaultFilter() preset.Filter {
	if *d.opts.Smooth {
		return preset.FilterLinear
	}
	return preset.FilterNearest
}

// SetShader replaces the active filter chain with one built from the given
// preset, or the pass-through chain for an empty path. The new chain is
// built before the old one is torn down, so a rejected preset never
// interrupts presentation: on failure the driver falls back to pass-through
// and returns the build error for the caller to classify.
func (d *Driver) SetShader(path string) error {
	filter := d.defaultFilter()

	var next *chain.FilterChain
	var err error
	if path == "" {
		next, err = chain.New(d.comp, filter)
	} else {
		next, err = chain.NewFromPreset(d.comp, path, filter)
	}
	if err != nil {
		stock, stockErr := chain.New(d.comp, filter)
		if stockErr != nil {
			return fmt.Errorf("pass-through fallback failed: %w", stockErr)
		}
		d.swapChain(stock)
		d.shaderPath = ""
		return err
	}

	d.swapChain(next)
	d.shaderPath = path
	return nil
}

func (d *Driver) swapChain(next *chain.FilterChain) {
	if d.chain != nil {
		d.chain.Destroy()
	}
	d.chain = next
}

// CurrentShaderPath reports the preset the active chain was built from,
// empty for pass-through.
func (d *Driver) CurrentShaderPath() string {
	return d.shaderPath
}

// CurrentPreset exposes the active chain's preset for parameter enumeration.
func (d *Driver) CurrentPreset() *preset.Preset {
	return d.chain.Preset()
}

// SetParameter adjusts a shader parameter on the active chain.
func (d *Driver) SetParameter(id string, value float32) bool {
	return d.chain.SetParameter(id, value)
}

// SetRotation sets the presentation rotation in 90 degree steps.
func (d *Driver) SetRotation(rotation int) {
	d.rotation = ((rotation % 4) + 4) % 4
}

// SetAspectRatio overrides the output aspect ratio; zero derives it from
// the frame size.
func (d *Driver) SetAspectRatio(aspect float32) {
	d.aspect = aspect
}

// SetViewport forces an exact output viewport; nil restores automatic
// fitting.
func (d *Driver) SetViewport(vp *chain.Viewport) {
	d.customVP = vp
}

// ViewportInfo reports the viewport used for the most recent frame.
func (d *Driver) ViewportInfo() chain.Viewport {
	return d.vp
}

// SetOverlayFunc installs a callback invoked after the chain's terminal
// pass, with the default framebuffer still bound. It receives the status
// message passed to Frame; menu and OSD rendering happen here.
func (d *Driver) SetOverlayFunc(f func(msg string)) {
	d.overlay = f
}

// SetFrameCount rewinds or fast-forwards the chain's frame counter.
func (d *Driver) SetFrameCount(count uint64) {
	d.chain.SetFrameCount(count)
}

// Frame presents one emulated frame. A nil pixel slice re-presents the
// previous frame content, still running the chain so animated shaders keep
// advancing. Pitch is the source row stride in bytes; msg is handed to the
// overlay callback for on-screen display.
func (d *Driver) Frame(pixels []byte, width, height, pitch int, msg string) error {
	fbWidth, fbHeight := d.ctx.GetFramebufferSize()

	tex := d.stream.upload(pixels, width, height, pitch)
	if tex.Width == 0 || tex.Height == 0 {
		return fmt.Errorf("no frame content to present")
	}

	d.vp = d.presentViewport(fbWidth, fbHeight, tex.Width, tex.Height)

	d.chain.SetInputTexture(tex)
	if err := d.chain.BuildOffscreenPasses(chain.Size{Width: d.vp.Width, Height: d.vp.Height}); err != nil {
		return err
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(fbWidth), int32(fbHeight))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	if err := d.chain.BuildViewportPass(d.vp, d.mvp()); err != nil {
		return err
	}

	if d.overlay != nil {
		d.overlay(msg)
	}

	if err := d.chain.EndFrame(); err != nil {
		return err
	}

	if d.capture != nil {
		if err := d.writeRecording(); err != nil {
			log.Printf("recording error: %v", err)
		}
	}

	d.ctx.EndFrame()

	d.syncIndex = (d.syncIndex + 1) % chain.NumSyncIndices
	d.chain.NotifySyncIndex(d.syncIndex)
	return nil
}

// presentViewport resolves this frame's output viewport: the forced override
// if one is set, otherwise the window fitted to the configured aspect with
// the frame ratio as fallback. The result also sizes viewport-scaled passes.
func (d *Driver) presentViewport(fbWidth, fbHeight, frameWidth, frameHeight int) chain.Viewport {
	if d.customVP != nil {
		return *d.customVP
	}
	aspect := d.aspect
	if aspect <= 0 {
		aspect = frameAspect(frameWidth, frameHeight)
	}
	return computeViewport(fbWidth, fbHeight, aspect, d.forceRatio, d.rotation)
}

// writeRecording kicks the async viewport readback and feeds completed
// frames to the encoder. The recorder starts lazily at the first frame's
// viewport size, rounded down to even for the encoder's sake.
func (d *Driver) writeRecording() error {
	vp := d.vp
	vp.Width &^= 1
	vp.Height &^= 1

	if d.recorder == nil {
		rec, err := record.New(*d.opts.OutputFile, vp.Width, vp.Height, *d.opts.FPS, *d.opts.FFMPEGPath)
		if err != nil {
			return err
		}
		d.recorder = rec
	}

	if w, h := d.recorder.Size(); w != vp.Width || h != vp.Height {
		// Window was resized mid-recording; hold the encoder's size.
		return nil
	}

	frame, err := d.capture.read(vp)
	if err != nil {
		return err
	}
	if frame != nil {
		return d.recorder.Write(frame)
	}
	return nil
}

// ReadViewport synchronously reads back the presented viewport as tightly
// packed RGBA, bottom row first.
func (d *Driver) ReadViewport() ([]byte, int, int, error) {
	vp := d.vp
	if vp.Width <= 0 || vp.Height <= 0 {
		return nil, 0, 0, fmt.Errorf("no presented viewport to read")
	}
	buf := make([]byte, vp.Width*vp.Height*4)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(vp.X), int32(vp.Y), int32(vp.Width), int32(vp.Height),
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(buf))
	gl.PixelStorei(gl.PACK_ALIGNMENT, 4)
	return buf, vp.Width, vp.Height, nil
}

// Alive reports whether the window is still open.
func (d *Driver) Alive() bool {
	return !d.ctx.ShouldClose()
}

// mvp is the terminal pass transform: the unit quad rotated about its
// center and flipped so top-down frame content lands upright on GL's
// bottom-left origin.
func (d *Driver) mvp() mgl32.Mat4 {
	ortho := mgl32.Ortho(0, 1, 0, 1, -1, 1)
	center := mgl32.Translate3D(0.5, 0.5, 0)
	rot := mgl32.HomogRotate3DZ(float32(d.rotation) * math.Pi / 2)
	flip := mgl32.Scale3D(1, -1, 1)
	back := mgl32.Translate3D(-0.5, -0.5, 0)
	return ortho.Mul4(center).Mul4(rot).Mul4(flip).Mul4(back)
}

// Free releases every GPU and encoder resource the driver owns.
func (d *Driver) Free() {
	if d.recorder != nil {
		if err := d.recorder.Close(); err != nil {
			log.Printf("failed to finalize recording: %v", err)
		}
		d.recorder = nil
	}
	if d.capture != nil {
		d.capture.destroy()
		d.capture = nil
	}
	if d.chain != nil {
		d.chain.Destroy()
		d.chain = nil
	}
	if d.stream != nil {
		d.stream.destroy()
		d.stream = nil
	}
}

// UploadTexture creates a static RGBA texture, e.g. for overlays. The
// caller owns the returned id and releases it with UnloadTexture.
func UploadTexture(width, height int, pixels []byte, linear bool) uint32 {
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	filter := int32(gl.NEAREST)
	if linear {
		filter = gl.LINEAR
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id
}

// UnloadTexture releases a texture created with UploadTexture.
func UnloadTexture(id uint32) {
	if id != 0 {
		gl.DeleteTextures(1, &id)
	}
}
