// Package mic records speech from the default input device.
package mic

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

type RecorderOptions struct {
	SampleRate   int
	SilenceRMS   float64
	SilenceAfter time.Duration
	MaxLength    time.Duration
}

var DefaultRecorderOptions = RecorderOptions{
	SampleRate:   16000,
	SilenceRMS:   0.015,
	SilenceAfter: 600 * time.Millisecond,
	MaxLength:    10 * time.Second,
}

type Recorder struct {
	opt RecorderOptions
}

func NewRecorder(opt RecorderOptions) *Recorder {
	if opt.SampleRate == 0 {
		opt = DefaultRecorderOptions
	}
	return &Recorder{opt: opt}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record listens on the default input device until speech is followed by
// SilenceAfter of silence or MaxLength elapses. It returns no samples when
// nothing rose above the silence threshold.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	const frameMs = 20

	frameSize := r.opt.SampleRate * frameMs / 1000
	buf := make([]float32, frameSize)
	out := make([]float32, 0, r.opt.SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.opt.SampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking      bool
		silenceFrames int
	)
	maxFrames := int(r.opt.MaxLength / (frameMs * time.Millisecond))
	silenceFramesMax := int(r.opt.SilenceAfter / (frameMs * time.Millisecond))

	for range maxFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > r.opt.SilenceRMS {
			speaking = true
			silenceFrames = 0
			out = append(out, buf...)
			continue
		}
		if speaking {
			silenceFrames++
			if silenceFrames >= silenceFramesMax {
				break
			}
			out = append(out, buf...)
		}
	}

	if !speaking {
		return nil, nil
	}
	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
