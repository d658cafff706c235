//go:build !opus

package audioconv

import (
	"errors"
	"io"
)

func decodeOpus(io.ReadSeeker) ([]float32, error) {
	return nil, errors.New("opus support not built in (build with -tags opus)")
}
