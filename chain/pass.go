package chain

import (
	"fmt"
	"math"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	mgl32 "github.com/go-gl/mathgl/mgl32"

	compiler "github.com/glemu/glvideo/compiler"
	preset "github.com/glemu/glvideo/preset"
)

// passInfo is the resolved configuration for one pass: preset overrides
// layered over shader-declared defaults.
type passInfo struct {
	ScaleTypeX, ScaleTypeY preset.ScaleType
	ScaleX, ScaleY         float32
	AbsX, AbsY             int

	// RTFormat is the GL internal format of the owned framebuffer, 0 for the
	// terminal pass which renders to the presentation surface.
	RTFormat uint32

	SourceFilter preset.Filter
	MipFilter    preset.Filter
	Address      preset.Wrap

	// MaxLevels caps the framebuffer's mip chain; 1 disables mipmapping.
	MaxLevels int

	FrameCountMod uint
}

// Pass is one shader stage pair in the chain. It owns its output framebuffer
// (absent for the terminal pass), an optional feedback framebuffer, the
// linked pipeline and the reflection-derived uniform locations.
type Pass struct {
	finalPass  bool
	passNumber int
	name       string

	common *CommonResources
	info   passInfo
	shader *compiler.ShaderOutput

	program uint32
	locs    map[string]int32

	framebuffer *Framebuffer
	feedback    *Framebuffer
	size        Size

	// finalViewport is the chain-level output viewport, bound to every pass
	// regardless of its own render size.
	finalViewport Size

	stream *quadStream

	frameCount    uint64
	needsFeedback bool
}

func newPass(number int, final bool, info passInfo, shader *compiler.ShaderOutput, common *CommonResources) *Pass {
	return &Pass{
		finalPass:  final,
		passNumber: number,
		common:     common,
		info:       info,
		shader:     shader,
		name:       shader.Reflection.Name,
	}
}

func (p *Pass) isFinal() bool { return p.finalPass }

// Name returns the pass name declared in the shader or set from the preset
// alias; empty for anonymous passes.
func (p *Pass) Name() string { return p.name }

func (p *Pass) setName(name string) { p.name = name }

// OutputSize returns the pass's current output size.
func (p *Pass) OutputSize() Size { return p.size }

// outputSize applies the scaling rule table for one pass.
func outputSize(info passInfo, original, source, viewport Size) Size {
	axis := func(t preset.ScaleType, scale float32, abs, o, s, v int) int {
		switch t {
		case preset.ScaleSource:
			return int(math.Round(float64(s) * float64(scale)))
		case preset.ScaleViewport:
			return int(math.Round(float64(v) * float64(scale)))
		case preset.ScaleAbsolute:
			return abs
		default: // ScaleOriginal
			return int(math.Round(float64(o) * float64(scale)))
		}
	}
	return Size{
		Width:  axis(info.ScaleTypeX, info.ScaleX, info.AbsX, original.Width, source.Width, viewport.Width),
		Height: axis(info.ScaleTypeY, info.ScaleY, info.AbsY, original.Height, source.Height, viewport.Height),
	}
}

// setPassInfo recomputes the pass's output size from the latest original,
// source and viewport sizes and resizes the owned framebuffer when it
// changed. Recomputing with unchanged inputs does not touch GPU resources.
func (p *Pass) setPassInfo(original, source, viewport Size) (Size, error) {
	if p.isFinal() {
		p.size = Size{Width: viewport.Width, Height: viewport.Height}
		return p.size, nil
	}

	size := outputSize(p.info, original, source, viewport)
	if size.empty() {
		return Size{}, fmt.Errorf("pass %d resolves to empty output size", p.passNumber)
	}

	if p.framebuffer == nil {
		fb, err := newFramebuffer(size, p.info.RTFormat, p.info.MaxLevels)
		if err != nil {
			return Size{}, fmt.Errorf("pass %d: %w", p.passNumber, err)
		}
		p.framebuffer = fb
	} else if err := p.framebuffer.setSize(size, 0); err != nil {
		return Size{}, fmt.Errorf("pass %d: %w", p.passNumber, err)
	}

	if p.needsFeedback {
		if p.feedback == nil {
			fb, err := newFramebuffer(size, p.info.RTFormat, 1)
			if err != nil {
				return Size{}, fmt.Errorf("pass %d feedback: %w", p.passNumber, err)
			}
			fb.clear()
			p.feedback = fb
		} else if err := p.feedback.setSize(size, 0); err != nil {
			return Size{}, fmt.Errorf("pass %d feedback: %w", p.passNumber, err)
		}
	}

	p.size = size
	return size, nil
}

// build links the pass pipeline from the translated stages and freezes the
// semantic-name to uniform-location map. Every sampler the shader declares
// must be resolvable, otherwise the chain would render undefined content.
func (p *Pass) build() error {
	program, err := newProgram(p.shader.Vertex, p.shader.Fragment)
	if err != nil {
		return fmt.Errorf("pass %d: %w", p.passNumber, err)
	}
	p.program = program

	p.locs = make(map[string]int32)
	for name, mapped := range p.shader.Reflection.Uniforms {
		loc := gl.GetUniformLocation(program, gl.Str(mapped+"\x00"))
		if loc >= 0 {
			p.locs[name] = loc
		}
	}

	for _, sampler := range p.shader.Reflection.Samplers {
		if !p.common.knows(sampler) {
			gl.DeleteProgram(p.program)
			p.program = 0
			return fmt.Errorf("pass %d references unknown texture %q", p.passNumber, sampler)
		}
	}

	p.stream = newQuadStream()
	return nil
}

func (p *Pass) setFrameCount(count uint64) {
	p.frameCount = count
}

func (p *Pass) setFinalViewport(size Size) {
	p.finalViewport = size
}

func (p *Pass) setSyncIndex(index int) {
	if p.stream != nil {
		p.stream.setSyncIndex(index)
	}
}

// buildCommands binds every reflected semantic and draws the pass. Offscreen
// passes render into their owned framebuffer; the terminal pass renders into
// whatever framebuffer the caller has bound.
func (p *Pass) buildCommands(original, source Texture, vp Viewport, mvp mgl32.Mat4) {
	if !p.isFinal() {
		gl.BindFramebuffer(gl.FRAMEBUFFER, p.framebuffer.fbo)
	}
	gl.Viewport(int32(vp.X), int32(vp.Y), int32(vp.Width), int32(vp.Height))

	gl.UseProgram(p.program)

	p.setMat4("MVP", mvp)
	p.setSizeVec4("OutputSize", p.size)
	p.setSizeVec4("FinalViewportSize", p.finalViewport)
	p.setSizeVec4("SourceSize", source.size())
	p.setSizeVec4("OriginalSize", original.size())

	if loc := p.loc("FrameCount"); loc >= 0 {
		count := p.frameCount
		if p.info.FrameCountMod > 0 {
			count %= uint64(p.info.FrameCountMod)
		}
		gl.Uniform1ui(loc, uint32(count))
	}

	for _, param := range p.common.preset.Parameters {
		if loc := p.loc(param.ID); loc >= 0 {
			gl.Uniform1f(loc, p.common.preset.Values[param.ID])
		}
	}

	unit := 0
	for _, name := range p.shader.Reflection.Samplers {
		tex, ok := p.resolveTexture(name, original, source)
		if !ok {
			continue
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_2D, tex.Image)
		applySampler(tex)
		gl.Uniform1i(p.loc(name), int32(unit))
		p.setSizeVec4(name+"Size", tex.size())
		unit++
	}
	gl.ActiveTexture(gl.TEXTURE0)

	verts := quadVerts()
	p.stream.draw(&verts)

	if !p.isFinal() {
		p.framebuffer.generateMips()
		if p.feedback != nil {
			p.feedback.copyFrom(p.framebuffer.texture(preset.FilterNearest, preset.FilterUnspec, p.info.Address))
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	}
}

// resolveTexture maps a sampler semantic to its current backing texture.
// Frame-relative names resolve here; everything else is a CommonResources
// lookup by name, never by pass index.
func (p *Pass) resolveTexture(name string, original, source Texture) (Texture, bool) {
	var tex Texture
	switch name {
	case "Original", "OriginalHistory0":
		tex = original
	case "Source":
		tex = source
	default:
		t, ok := p.common.texture(name)
		if !ok {
			return Texture{}, false
		}
		if p.isLUT(name) {
			// LUT sampler state is baked at load time.
			return t, true
		}
		tex = t
	}

	// Chain-internal textures are sampled with the consuming pass's filter
	// and address mode.
	tex.Filter = p.info.SourceFilter
	tex.Wrap = p.info.Address
	if tex.MipFilter != preset.FilterUnspec {
		tex.MipFilter = p.info.MipFilter
	}
	return tex, true
}

func (p *Pass) isLUT(name string) bool {
	for _, lut := range p.common.luts {
		if lut.id == name {
			return true
		}
	}
	return false
}

func (p *Pass) loc(name string) int32 {
	if loc, ok := p.locs[name]; ok {
		return loc
	}
	return -1
}

func (p *Pass) setMat4(name string, m mgl32.Mat4) {
	if loc := p.loc(name); loc >= 0 {
		gl.UniformMatrix4fv(loc, 1, false, &m[0])
	}
}

func (p *Pass) setSizeVec4(name string, s Size) {
	if loc := p.loc(name); loc >= 0 {
		w := float32(s.Width)
		h := float32(s.Height)
		gl.Uniform4f(loc, w, h, 1.0/w, 1.0/h)
	}
}

func (p *Pass) destroy() {
	if p.program != 0 {
		gl.DeleteProgram(p.program)
		p.program = 0
	}
	if p.stream != nil {
		p.stream.destroy()
		p.stream = nil
	}
	if p.framebuffer != nil {
		p.framebuffer.destroy()
		p.framebuffer = nil
	}
	if p.feedback != nil {
		p.feedback.destroy()
		p.feedback = nil
	}
}

func newProgram(vertexShaderSource, fragmentShaderSource string) (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("failed to link program: %v", log)
	}

	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile shader: %v", logText)
	}
	return shader, nil
}
