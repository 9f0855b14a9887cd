package options

// VideoOptions carries the driver configuration assembled from command-line
// flags or by the embedding frontend.
type VideoOptions struct {
	Width      *int
	Height     *int
	Fullscreen *bool
	VSync      *bool
	Smooth     *bool // bilinear filtering for the stock chain and unspecified passes
	RGB32      *bool // input frames are XRGB8888 rather than RGB565
	ForceRatio *bool
	Aspect     *float64
	ShaderPath *string // optional shader preset applied at startup
	Rotation   *int    // screen rotation in multiples of 90 degrees

	// Recording
	Record     *bool
	OutputFile *string
	FPS        *int
	FFMPEGPath *string
}
