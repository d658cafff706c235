package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go/v3"

	"dollar/pkg/audioconv"
)

// OpenAI transcribes remotely with the audio transcription endpoint.
type OpenAI struct {
	client   openai.Client
	model    openai.AudioModel
	language string
}

func NewOpenAI(client openai.Client, language string) *OpenAI {
	return &OpenAI{
		client:   client,
		model:    openai.AudioModelWhisper1,
		language: language,
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	wav, err := audioconv.EncodeWAV(pcm, audioconv.SampleRate)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "user_audio.wav", "audio/wav"),
		Model: o.model,
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}

	res, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return "", &Error{Code: CodeServiceNotAllowed, Err: err}
			}
			return "", &Error{Code: CodeTranscription, Err: err}
		}
		return "", fmt.Errorf("transcription: %w", err)
	}

	return res.Text, nil
}
