// Package chain builds and drives the multi-pass shader filter chain: a
// preset's passes compiled into GL pipelines, wired together through owned
// framebuffers, history and feedback buffers and static lookup textures.
package chain

import (
	"fmt"
	"log"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	mgl32 "github.com/go-gl/mathgl/mgl32"

	compiler "github.com/glemu/glvideo/compiler"
	preset "github.com/glemu/glvideo/preset"
)

// maxMipLevels caps owned mip chains; plenty for any realistic target size.
const maxMipLevels = 16

// FilterChain owns the full pass sequence for one loaded preset. A chain is
// immutable after construction; loading a different preset means building a
// new chain and destroying the old one.
type FilterChain struct {
	passes  []*Pass
	common  *CommonResources
	history *historyRing

	input       Texture
	finalSource Texture

	frameCount   uint64
	requireClear bool
}

// New builds a single-pass chain around the built-in pass-through shader.
// Used when no preset is set, and as the fallback when a preset fails.
func New(comp compiler.Compiler, filter preset.Filter) (*FilterChain, error) {
	out, err := comp.CompileSource("stock", compiler.StockSource)
	if err != nil {
		return nil, err
	}

	pr := &preset.Preset{Values: make(map[string]float32)}
	fc := &FilterChain{
		common:       &CommonResources{preset: pr, aliasMap: make(map[string]int)},
		requireClear: true,
	}
	info := buildPassInfo(preset.PassConfig{Filter: filter}, "", false, true, filter)
	fc.passes = append(fc.passes, newPass(0, true, info, out, fc.common))

	if err := fc.init(); err != nil {
		fc.Destroy()
		return nil, err
	}
	return fc, nil
}

// NewFromPreset parses and compiles a preset and assembles the chain. The
// returned error distinguishes preset parse failures, shader compile
// failures and parameter conflicts via errors.As.
func NewFromPreset(comp compiler.Compiler, path string, filter preset.Filter) (*FilterChain, error) {
	pr, err := preset.Load(path)
	if err != nil {
		return nil, err
	}
	return build(comp, pr, filter)
}

// compilePasses compiles every configured pass, merges the declared
// parameters into the preset, and appends the terminal pass-through blit
// when the last pass renders to an owned framebuffer.
func compilePasses(comp compiler.Compiler, pr *preset.Preset, filter preset.Filter) ([]*compiler.ShaderOutput, []preset.PassConfig, error) {
	shaders := make([]*compiler.ShaderOutput, 0, len(pr.Passes)+1)
	for i, pc := range pr.Passes {
		out, err := comp.Compile(pc.ShaderPath)
		if err != nil {
			return nil, nil, fmt.Errorf("pass %d: %w", i, err)
		}
		if err := pr.AddParameters(out.Reflection.Parameters); err != nil {
			return nil, nil, err
		}
		shaders = append(shaders, out)
	}
	pr.ApplyOverrides()

	configs := append([]preset.PassConfig(nil), pr.Passes...)
	if n := len(configs); n > 0 && configs[n-1].FBO.Valid {
		stock, err := comp.CompileSource("stock", compiler.StockSource)
		if err != nil {
			return nil, nil, err
		}
		shaders = append(shaders, stock)
		configs = append(configs, preset.PassConfig{Filter: filter, Wrap: preset.WrapClampToEdge})
	}

	if last := shaders[len(shaders)-1]; last.Reflection.Format != "" {
		log.Printf("terminal pass declares format %q; it renders to the presentation surface, hint ignored", last.Reflection.Format)
	}
	return shaders, configs, nil
}

func build(comp compiler.Compiler, pr *preset.Preset, filter preset.Filter) (*FilterChain, error) {
	shaders, configs, err := compilePasses(comp, pr, filter)
	if err != nil {
		return nil, err
	}

	fc := &FilterChain{
		common:       &CommonResources{preset: pr, aliasMap: make(map[string]int)},
		requireClear: true,
	}

	for i := range configs {
		final := i == len(configs)-1
		nextMip := !final && configs[i+1].Mipmap
		info := buildPassInfo(configs[i], shaders[i].Reflection.Format, nextMip, final, filter)
		p := newPass(i, final, info, shaders[i], fc.common)
		if alias := configs[i].Alias; alias != "" {
			p.setName(alias)
		}
		fc.passes = append(fc.passes, p)
	}

	if err := fc.init(); err != nil {
		fc.Destroy()
		return nil, err
	}
	return fc, nil
}

// buildPassInfo layers the preset's pass configuration over the shader's own
// declarations into the effective pass configuration.
func buildPassInfo(pc preset.PassConfig, formatHint string, nextMip, final bool, def preset.Filter) passInfo {
	info := passInfo{
		ScaleTypeX:    preset.ScaleSource,
		ScaleTypeY:    preset.ScaleSource,
		ScaleX:        1.0,
		ScaleY:        1.0,
		SourceFilter:  pc.Filter,
		Address:       pc.Wrap,
		MaxLevels:     1,
		FrameCountMod: pc.FrameCountMod,
	}

	if info.SourceFilter == preset.FilterUnspec {
		info.SourceFilter = def
	}
	if info.SourceFilter == preset.FilterUnspec {
		info.SourceFilter = preset.FilterLinear
	}
	if pc.Mipmap {
		info.MipFilter = info.SourceFilter
	}
	if nextMip {
		info.MaxLevels = maxMipLevels
	}

	if pc.FBO.Valid {
		info.ScaleTypeX = pc.FBO.TypeX
		info.ScaleTypeY = pc.FBO.TypeY
		info.ScaleX = pc.FBO.ScaleX
		info.ScaleY = pc.FBO.ScaleY
		info.AbsX = pc.FBO.AbsX
		info.AbsY = pc.FBO.AbsY
	}

	if !final {
		info.RTFormat = renderTargetFormat(pc.FBO, formatHint)
	}
	return info
}

// renderTargetFormat resolves a pass's pixel format: preset framebuffer
// flags win over the shader's format hint, which wins over plain RGBA8.
func renderTargetFormat(fbo preset.FBOScale, hint string) uint32 {
	if fbo.Valid && fbo.SRGB {
		return gl.SRGB8_ALPHA8
	}
	if fbo.Valid && fbo.Float {
		return gl.RGBA16F
	}
	if f, ok := formatFromHint(hint); ok {
		return f
	}
	return gl.RGBA8
}

// init loads LUTs, sizes the history ring and feedback set from what the
// compiled shaders actually reference, then links every pass.
func (fc *FilterChain) init() error {
	pr := fc.common.preset

	for _, lut := range pr.LUTs {
		tex, err := loadLUT(lut)
		if err != nil {
			return err
		}
		fc.common.luts = append(fc.common.luts, tex)
	}

	for i, p := range fc.passes {
		if p.name != "" {
			if prev, ok := fc.common.aliasMap[p.name]; ok {
				return fmt.Errorf("pass name %q used by both pass %d and pass %d", p.name, prev, i)
			}
			fc.common.aliasMap[p.name] = i
		}
	}

	fc.common.passOutputs = make([]Texture, len(fc.passes))
	fc.common.framebufferFeedback = make([]Texture, len(fc.passes))
	fc.history = newHistoryRing(fc.historyDepth())
	fc.common.originalHistory = make([]Texture, fc.history.capacity())

	for _, p := range fc.passes {
		for _, sampler := range p.shader.Reflection.Samplers {
			if idx, ok := fc.feedbackTarget(sampler); ok {
				fc.passes[idx].needsFeedback = true
			}
		}
	}
	if fc.passes[len(fc.passes)-1].needsFeedback {
		return fmt.Errorf("terminal pass has no framebuffer to feed back")
	}

	for _, p := range fc.passes {
		if err := p.build(); err != nil {
			return err
		}
	}

	if fc.history.capacity() > 0 {
		log.Printf("filter chain keeps %d history frame(s)", fc.history.capacity())
	}
	return nil
}

// historyDepth is the deepest OriginalHistoryN any pass samples.
func (fc *FilterChain) historyDepth() int {
	depth := 0
	for _, p := range fc.passes {
		for _, sampler := range p.shader.Reflection.Samplers {
			if n, ok := semanticIndex(sampler, "OriginalHistory"); ok && n > depth {
				depth = n
			}
		}
	}
	return depth
}

// feedbackTarget maps a sampler name to the pass index whose previous-frame
// output it requests, either "PassFeedbackN" or "<alias>Feedback".
func (fc *FilterChain) feedbackTarget(sampler string) (int, bool) {
	if n, ok := semanticIndex(sampler, "PassFeedback"); ok {
		if n >= 0 && n < len(fc.passes) {
			return n, true
		}
		return 0, false
	}
	if alias, found := strings.CutSuffix(sampler, "Feedback"); found && alias != "" {
		if idx, ok := fc.common.aliasMap[alias]; ok {
			return idx, true
		}
	}
	return 0, false
}

// SetInputTexture sets the frame content for the upcoming Build calls. The
// texture is sampled, never owned.
func (fc *FilterChain) SetInputTexture(t Texture) {
	fc.input = t
}

// SetFrameCount overrides the frame counter, e.g. after state rewind.
func (fc *FilterChain) SetFrameCount(count uint64) {
	fc.frameCount = count
}

// NotifySyncIndex advances every pass's streamed vertex slot. Called once
// per frame with the presentation ring index.
func (fc *FilterChain) NotifySyncIndex(index int) {
	for _, p := range fc.passes {
		p.setSyncIndex(index)
	}
}

// SetParameter updates a runtime parameter value, clamped to its declared
// range. Reports whether the id exists in the loaded preset.
func (fc *FilterChain) SetParameter(id string, value float32) bool {
	return fc.common.preset.SetParameter(id, value)
}

// Preset exposes the loaded preset, mainly for parameter enumeration.
func (fc *FilterChain) Preset() *preset.Preset {
	return fc.common.preset
}

// SetPassName renames a pass, updating the alias table so later passes can
// reference the new name next chain rebuild. The name must not collide with
// another pass.
func (fc *FilterChain) SetPassName(index int, name string) error {
	if index < 0 || index >= len(fc.passes) {
		return fmt.Errorf("no pass %d", index)
	}
	if idx, ok := fc.common.aliasMap[name]; ok && idx != index {
		return fmt.Errorf("pass name %q is already used by pass %d", name, idx)
	}
	p := fc.passes[index]
	if p.name != "" {
		delete(fc.common.aliasMap, p.name)
	}
	p.setName(name)
	if name != "" {
		fc.common.aliasMap[name] = index
	}
	return nil
}

// PassCount reports the number of passes including any appended terminal
// blit pass.
func (fc *FilterChain) PassCount() int {
	return len(fc.passes)
}

// BuildOffscreenPasses sizes and renders every pass except the terminal one,
// recording each output for later passes to sample. The viewport is the
// fitted output viewport shared by the whole chain, not the window size.
func (fc *FilterChain) BuildOffscreenPasses(viewport Size) error {
	originalSize := fc.input.size()
	if originalSize.empty() {
		return fmt.Errorf("no input texture set")
	}

	if err := fc.updateHistory(originalSize); err != nil {
		return err
	}

	// Sizing first: setPassInfo allocates framebuffers and feedback buffers,
	// so every feedback texture exists before any pass samples it.
	sourceSize := originalSize
	for _, p := range fc.passes[:len(fc.passes)-1] {
		size, err := p.setPassInfo(originalSize, sourceSize, viewport)
		if err != nil {
			return err
		}
		p.setFinalViewport(viewport)
		sourceSize = size
	}
	fc.updateFeedback()

	ortho := mgl32.Ortho(0, 1, 0, 1, -1, 1)
	source := fc.input

	for i, p := range fc.passes[:len(fc.passes)-1] {
		if fc.requireClear {
			p.framebuffer.clear()
		}
		p.setFrameCount(fc.frameCount)
		p.buildCommands(fc.input, source, Viewport{Width: p.size.Width, Height: p.size.Height}, ortho)

		out := p.framebuffer.texture(preset.FilterLinear, preset.FilterLinear, p.info.Address)
		fc.common.passOutputs[i] = out
		source = out
	}

	fc.finalSource = source
	fc.requireClear = false
	return nil
}

// BuildViewportPass renders the terminal pass into the currently bound
// framebuffer at the given viewport with the caller's transform.
func (fc *FilterChain) BuildViewportPass(vp Viewport, mvp mgl32.Mat4) error {
	final := fc.passes[len(fc.passes)-1]
	if _, err := final.setPassInfo(fc.input.size(), fc.finalSource.size(),
		Size{Width: vp.Width, Height: vp.Height}); err != nil {
		return err
	}
	final.setFinalViewport(Size{Width: vp.Width, Height: vp.Height})
	final.setFrameCount(fc.frameCount)
	final.buildCommands(fc.input, fc.finalSource, vp, mvp)
	return nil
}

// EndFrame captures the presented input into the history ring and advances
// the frame counter. Call after BuildViewportPass.
func (fc *FilterChain) EndFrame() error {
	if fc.history.capacity() > 0 {
		fb := fc.history.push()
		if err := fb.setSize(fc.input.size(), 0); err != nil {
			return err
		}
		fb.copyFrom(fc.input)
	}
	fc.frameCount++
	return nil
}

// updateHistory sizes the history slots to the current input and publishes
// their textures. A size change invalidates old content, so changed slots
// are cleared.
func (fc *FilterChain) updateHistory(size Size) error {
	if fc.history.capacity() == 0 {
		return nil
	}
	for i, fb := range fc.history.frames {
		if fb == nil {
			var err error
			fb, err = newFramebuffer(size, gl.RGBA8, 1)
			if err != nil {
				return err
			}
			fb.clear()
			fc.history.frames[i] = fb
		} else if fb.size != size {
			if err := fb.setSize(size, 0); err != nil {
				return err
			}
			fb.clear()
		}
		fc.common.originalHistory[i] = fb.texture(preset.FilterLinear, preset.FilterUnspec, preset.WrapClampToBorder)
	}
	return nil
}

// updateFeedback publishes each feedback framebuffer's texture for this
// frame. Content is whatever the pass wrote last frame.
func (fc *FilterChain) updateFeedback() {
	for i, p := range fc.passes {
		if p.feedback != nil {
			fc.common.framebufferFeedback[i] = p.feedback.texture(preset.FilterLinear, preset.FilterUnspec, p.info.Address)
		}
	}
}

// Destroy releases every GPU resource the chain owns.
func (fc *FilterChain) Destroy() {
	for _, p := range fc.passes {
		p.destroy()
	}
	fc.passes = nil
	if fc.history != nil {
		fc.history.destroy()
		fc.history = nil
	}
	if fc.common != nil {
		fc.common.destroy()
		fc.common = nil
	}
}
