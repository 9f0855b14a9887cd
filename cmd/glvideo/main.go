package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"runtime"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	compiler "github.com/glemu/glvideo/compiler"
	glfwcontext "github.com/glemu/glvideo/glfwcontext"
	options "github.com/glemu/glvideo/options"
	video "github.com/glemu/glvideo/video"
)

func init() {
	runtime.LockOSThread()
}

const sourceWidth, sourceHeight = 320, 240

// testFrame paints an animated gradient with a scrolling bar, as stand-in
// frame content for exercising presets.
func testFrame(buf []byte, frame int, rgb32 bool) {
	bar := frame % sourceWidth
	for y := 0; y < sourceHeight; y++ {
		for x := 0; x < sourceWidth; x++ {
			r := byte(x * 255 / sourceWidth)
			g := byte(y * 255 / sourceHeight)
			b := byte(frame)
			if x == bar {
				r, g, b = 255, 255, 255
			}
			if rgb32 {
				i := (y*sourceWidth + x) * 4
				buf[i+0] = b
				buf[i+1] = g
				buf[i+2] = r
				buf[i+3] = 0xff
			} else {
				i := (y*sourceWidth + x) * 2
				p := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
				buf[i+0] = byte(p)
				buf[i+1] = byte(p >> 8)
			}
		}
	}
}

func run(opts *options.VideoOptions) error {
	if err := glfwcontext.InitGraphics(); err != nil {
		return fmt.Errorf("failed to initialize graphics: %w", err)
	}
	defer glfwcontext.TerminateGraphics()

	ctx, err := glfwcontext.New(opts, "glvideo")
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer ctx.Shutdown()

	if err := gl.Init(); err != nil {
		return fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Printf("OpenGL %s", gl.GoStr(gl.GetString(gl.VERSION)))

	comp, err := compiler.NewTranslator(context.Background())
	if err != nil {
		return fmt.Errorf("failed to start shader translator: %w", err)
	}

	driver, err := video.New(opts, ctx, comp)
	if err != nil {
		return err
	}
	defer driver.Free()

	bpp := 2
	if *opts.RGB32 {
		bpp = 4
	}
	buf := make([]byte, sourceWidth*sourceHeight*bpp)

	for frame := 0; driver.Alive(); frame++ {
		testFrame(buf, frame, *opts.RGB32)
		if err := driver.Frame(buf, sourceWidth, sourceHeight, sourceWidth*bpp, ""); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	opts := &options.VideoOptions{
		Width:      flag.Int("width", 1280, "Window width"),
		Height:     flag.Int("height", 720, "Window height"),
		Fullscreen: flag.Bool("fullscreen", false, "Start fullscreen"),
		VSync:      flag.Bool("vsync", true, "Sync presentation to the display"),
		Smooth:     flag.Bool("smooth", false, "Bilinear filtering when no preset overrides it"),
		RGB32:      flag.Bool("rgb32", true, "Feed XRGB8888 frames instead of RGB565"),
		ForceRatio: flag.Bool("force-ratio", true, "Letterbox to the aspect ratio"),
		Aspect:     flag.Float64("aspect", 4.0/3.0, "Output aspect ratio (0 derives it from the frame)"),
		ShaderPath: flag.String("shader", "", "Shader preset to load"),
		Rotation:   flag.Int("rotation", 0, "Rotation in 90 degree steps"),
		Record:     flag.Bool("record", false, "Record the output to a video file"),
		OutputFile: flag.String("output", "output.mp4", "Recording file name"),
		FPS:        flag.Int("fps", 60, "Recording frame rate"),
		FFMPEGPath: flag.String("ffmpeg", "", "Path to ffmpeg executable"),
	}
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("%v", err)
	}
}
