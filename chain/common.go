package chain

import (
	"strconv"
	"strings"

	preset "github.com/glemu/glvideo/preset"
)

// CommonResources is the shared state every pass binds from: the loaded
// preset, the history and feedback textures, earlier passes' outputs and all
// LUTs, addressable by semantic name.
type CommonResources struct {
	preset *preset.Preset

	originalHistory     []Texture
	framebufferFeedback []Texture
	passOutputs         []Texture
	luts                []*StaticTexture

	// aliasMap resolves a pass alias to its pass index, so "<alias>" and
	// "<alias>Feedback" bind that pass's output and feedback content.
	aliasMap map[string]int
}

// texture resolves a semantic name to the texture currently backing it.
// "Original", "Source" and "OriginalHistory0" are frame-relative and
// resolved by the pass itself before consulting this table.
func (c *CommonResources) texture(name string) (Texture, bool) {
	if n, ok := semanticIndex(name, "OriginalHistory"); ok {
		if n >= 1 && n <= len(c.originalHistory) {
			return c.originalHistory[n-1], true
		}
		return Texture{}, false
	}
	if n, ok := semanticIndex(name, "PassOutput"); ok {
		if n >= 0 && n < len(c.passOutputs) {
			return c.passOutputs[n], true
		}
		return Texture{}, false
	}
	if n, ok := semanticIndex(name, "PassFeedback"); ok {
		if n >= 0 && n < len(c.framebufferFeedback) {
			return c.framebufferFeedback[n], true
		}
		return Texture{}, false
	}

	for _, lut := range c.luts {
		if lut.id == name {
			return lut.texture, true
		}
	}

	if idx, ok := c.aliasMap[name]; ok {
		return c.passOutputs[idx], true
	}
	if alias, found := strings.CutSuffix(name, "Feedback"); found {
		if idx, ok := c.aliasMap[alias]; ok {
			return c.framebufferFeedback[idx], true
		}
	}

	return Texture{}, false
}

// knows reports whether name is resolvable in principle, used at build time
// to validate a shader's sampler set before the first frame renders.
func (c *CommonResources) knows(name string) bool {
	if name == "Original" || name == "Source" || name == "OriginalHistory0" {
		return true
	}
	if n, ok := semanticIndex(name, "OriginalHistory"); ok {
		return n >= 1 && n <= len(c.originalHistory)
	}
	if n, ok := semanticIndex(name, "PassOutput"); ok {
		return n >= 0 && n < len(c.passOutputs)
	}
	if n, ok := semanticIndex(name, "PassFeedback"); ok {
		return n >= 0 && n < len(c.framebufferFeedback)
	}
	for _, lut := range c.luts {
		if lut.id == name {
			return true
		}
	}
	if _, ok := c.aliasMap[name]; ok {
		return true
	}
	if alias, found := strings.CutSuffix(name, "Feedback"); found {
		_, ok := c.aliasMap[alias]
		return ok
	}
	return false
}

func (c *CommonResources) destroy() {
	for _, lut := range c.luts {
		lut.destroy()
	}
	c.luts = nil
}

// semanticIndex splits names like "PassOutput3" into their numeric suffix.
func semanticIndex(name, prefix string) (int, bool) {
	rest, found := strings.CutPrefix(name, prefix)
	if !found || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
