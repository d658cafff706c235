// Package espeak speaks through libespeak-ng in asynchronous playback mode.
package espeak

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static int
espeak_init(const char *voice)
{
	if (espeak_Initialize(AUDIO_OUTPUT_PLAYBACK, 500, NULL, 0) < 0)
	{ return -1; }

	espeak_VOICE specs;
	memset(&specs, 0, sizeof(specs));
	specs.languages = voice;
	return espeak_SetVoiceByProperties(&specs) == EE_OK ? 0 : -2;
}

static int
espeak_say(const char *text)
{
	if (!text)
	{ return -1; }

	espeak_ERROR rc = espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0,
		espeakCHARS_AUTO, NULL, NULL);
	return rc == EE_OK ? 0 : (int)rc;
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unsafe"
)

// Engine is process-wide: libespeak-ng keeps one global synthesizer.
type Engine struct {
	mu sync.Mutex
}

var (
	initOnce sync.Once
	initErr  error
)

func New(voice string) (*Engine, error) {
	initOnce.Do(func() {
		cvoice := C.CString(voice)
		defer C.free(unsafe.Pointer(cvoice))

		if rc := C.espeak_init(cvoice); rc != 0 {
			initErr = fmt.Errorf("espeak init failed: %d", int(rc))
		}
	})
	if initErr != nil {
		return nil, initErr
	}
	return &Engine{}, nil
}

// Say queues text and polls until playback ends. Canceling ctx stops the
// synthesizer immediately.
func (e *Engine) Say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	if rc := C.espeak_say(ctext); rc != 0 {
		return fmt.Errorf("espeak_Synth failed: %d", int(rc))
	}

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			C.espeak_Cancel()
			return ctx.Err()
		case <-tick.C:
			if C.espeak_IsPlaying() == 0 {
				return nil
			}
		}
	}
}

func (e *Engine) Close() error {
	C.espeak_Terminate()
	return nil
}
