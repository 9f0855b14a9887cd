package preset

import (
	"fmt"

	compiler "github.com/glemu/glvideo/compiler"
)

// ScaleType selects how one axis of a pass's output size is derived.
type ScaleType int

const (
	// ScaleOriginal sizes against the original (pre-chain) input frame.
	ScaleOriginal ScaleType = iota
	// ScaleSource sizes against the previous pass's output.
	ScaleSource
	// ScaleViewport sizes against the final viewport.
	ScaleViewport
	// ScaleAbsolute is a literal pixel size.
	ScaleAbsolute
)

// Filter is a texture sampling filter.
type Filter int

const (
	// FilterUnspec defers to the chain-wide default filter.
	FilterUnspec Filter = iota
	FilterLinear
	FilterNearest
)

// Wrap is a texture address mode.
type Wrap int

const (
	WrapClampToBorder Wrap = iota
	WrapClampToEdge
	WrapRepeat
	WrapMirroredRepeat
)

// FBOScale is the optional explicit render-target override for a pass. When
// Valid is false the pass scales 1:1 against its source (or the viewport for
// the terminal pass) and takes the default pixel format.
type FBOScale struct {
	Valid          bool
	TypeX, TypeY   ScaleType
	ScaleX, ScaleY float32
	AbsX, AbsY     int

	// Pixel format overrides. SRGB wins over Float when both are set.
	SRGB  bool
	Float bool
}

// PassConfig is one pass of a shader preset.
type PassConfig struct {
	ShaderPath    string
	Alias         string
	Filter        Filter
	Wrap          Wrap
	Mipmap        bool // this pass samples its source with mipmapping
	FrameCountMod uint
	FBO           FBOScale
}

// LUT is a static lookup texture referenced by the preset.
type LUT struct {
	ID     string
	Path   string
	Filter Filter
	Wrap   Wrap
	Mipmap bool
}

// Preset is a parsed shader preset plus the parameters collected from its
// shaders at compile time.
type Preset struct {
	Path   string
	Passes []PassConfig
	LUTs   []LUT

	// Parameters declared across all passes, deduplicated.
	Parameters []compiler.Parameter

	// Values holds the current value per parameter id.
	Values map[string]float32

	// overrides are the "parameters" directives from the preset file, applied
	// once the declared parameter set is known.
	overrides map[string]float32
}

// ParameterConflictError reports two passes declaring the same parameter id
// with different fields. Such a preset is rejected outright.
type ParameterConflictError struct {
	ID string
}

func (e *ParameterConflictError) Error() string {
	return fmt.Sprintf("duplicate parameter %q declared with mismatched arguments", e.ID)
}

// AddParameters merges one pass's declared parameters into the preset.
// Duplicate declarations are permitted only when every field matches exactly.
func (p *Preset) AddParameters(params []compiler.Parameter) error {
	if p.Values == nil {
		p.Values = make(map[string]float32)
	}
	for _, param := range params {
		if existing, ok := p.lookup(param.ID); ok {
			if *existing != param {
				return &ParameterConflictError{ID: param.ID}
			}
			continue
		}
		p.Parameters = append(p.Parameters, param)
		p.Values[param.ID] = param.Initial
	}
	return nil
}

// ApplyOverrides folds the preset file's parameter values over the declared
// initials. Overrides naming unknown parameters are ignored; shaders may come
// and go while a preset is edited.
func (p *Preset) ApplyOverrides() {
	for id, v := range p.overrides {
		if _, ok := p.lookup(id); ok {
			p.Values[id] = v
		}
	}
}

// SetParameter updates a declared parameter's current value, clamped to its
// declared range. Reports whether the id is known.
func (p *Preset) SetParameter(id string, value float32) bool {
	param, ok := p.lookup(id)
	if !ok {
		return false
	}
	if value < param.Minimum {
		value = param.Minimum
	}
	if value > param.Maximum {
		value = param.Maximum
	}
	p.Values[id] = value
	return true
}

func (p *Preset) lookup(id string) (*compiler.Parameter, bool) {
	for i := range p.Parameters {
		if p.Parameters[i].ID == id {
			return &p.Parameters[i], true
		}
	}
	return nil, false
}
