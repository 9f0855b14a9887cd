// Package record encodes presented frames to a video file by piping raw
// pixels into an FFmpeg process.
package record

import (
	"fmt"
	"io"
	"log"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Recorder owns the FFmpeg child process for one output file. Frames must
// arrive at the size the recorder was created with.
type Recorder struct {
	width  int
	height int

	pipeWriter *io.PipeWriter
	errc       chan error
	closed     bool
}

// New starts FFmpeg reading raw RGBA frames from stdin. GL readbacks are
// bottom-up, so the output is vertically flipped during encode.
func New(outputFile string, width, height, fps int, ffmpegPath string) (*Recorder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid recording size %dx%d", width, height)
	}

	inputArgs := ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", width, height),
		"framerate": fps,
	}
	outputArgs := ffmpeg.KwArgs{
		"c:v":     "libx264",
		"pix_fmt": "yuv420p",
		"vf":      "vflip",
	}

	pipeReader, pipeWriter := io.Pipe()

	ffmpegCmd := ffmpeg.Input("pipe:", inputArgs).
		Output(outputFile, outputArgs).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()
	if ffmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(ffmpegPath)
	}

	r := &Recorder{
		width:      width,
		height:     height,
		pipeWriter: pipeWriter,
		errc:       make(chan error, 1),
	}
	go func() {
		r.errc <- ffmpegCmd.Run()
	}()

	log.Printf("recording %dx%d@%dfps to %s", width, height, fps, outputFile)
	return r, nil
}

// Size reports the frame size the recorder expects.
func (r *Recorder) Size() (int, int) {
	return r.width, r.height
}

// Write submits one raw RGBA frame.
func (r *Recorder) Write(pixels []byte) error {
	if r.closed {
		return fmt.Errorf("recorder is closed")
	}
	if want := r.width * r.height * 4; len(pixels) != want {
		return fmt.Errorf("frame is %d bytes, want %d", len(pixels), want)
	}
	if _, err := r.pipeWriter.Write(pixels); err != nil {
		return fmt.Errorf("failed to write frame to encoder: %w", err)
	}
	return nil
}

// Close drains the pipe and waits for FFmpeg to finish the file.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.pipeWriter.Close()
	return <-r.errc
}
