package port

import (
	"context"
	"io"
)

// AvatarStorage writes avatar objects and returns their public URL.
type AvatarStorage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}
