package graphics

// Context defines the interface for the rendering context the video driver
// draws into. Window creation and buffer swapping live behind it so the
// driver and filter chain stay independent of the windowing system.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool

	// EndFrame swaps buffers and pumps window events.
	EndFrame()

	GetFramebufferSize() (int, int)
	Time() float64
}
