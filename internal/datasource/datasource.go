// Package datasource defines where pipeline input bytes come from. The file
// subpackage serves local trip files; httpds fetches remote ones.
package datasource

import (
	"context"
	"io"
)

// Source opens a stream of bytes for one input.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
