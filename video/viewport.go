package video

import (
	"math"

	chain "github.com/glemu/glvideo/chain"
)

// computeViewport fits the output viewport into the window. Without aspect
// enforcement the whole framebuffer is used; with it the image is
// letterboxed or pillarboxed to the requested ratio, swapped for 90 and 270
// degree rotations.
func computeViewport(winWidth, winHeight int, aspect float32, forceRatio bool, rotation int) chain.Viewport {
	full := chain.Viewport{Width: winWidth, Height: winHeight}
	if !forceRatio || aspect <= 0 || winWidth <= 0 || winHeight <= 0 {
		return full
	}

	desired := float64(aspect)
	if rotation%2 == 1 {
		desired = 1.0 / desired
	}

	actual := float64(winWidth) / float64(winHeight)
	vp := full
	if actual > desired {
		vp.Width = int(math.Round(float64(winHeight) * desired))
		vp.X = (winWidth - vp.Width) / 2
	} else if actual < desired {
		vp.Height = int(math.Round(float64(winWidth) / desired))
		vp.Y = (winHeight - vp.Height) / 2
	}
	return vp
}

// frameAspect is the source frame's width to height ratio, used when no
// explicit aspect has been configured. Pixels are assumed square.
func frameAspect(width, height int) float32 {
	if height == 0 {
		return 1
	}
	return float32(width) / float32(height)
}
