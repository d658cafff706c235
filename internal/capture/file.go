package capture

import (
	"context"

	"dollar/pkg/audioconv"
)

// FileSource replays a recorded audio file (wav, mp3, ogg) as a session.
type FileSource struct {
	Path       string
	MaxSamples int
}

func (f FileSource) Record(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return audioconv.DecodeFile(f.Path, audioconv.Options{MaxSamples: f.MaxSamples})
}
