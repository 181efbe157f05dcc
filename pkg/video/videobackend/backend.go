package videobackend

import (
	"context"
	"strings"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragoncam/pkg/video/videoframe"
)

var fs = afero.NewOsFs()

const defaultJPEGQuality = 80

// Connection is an open camera source. Read acquires the next encoded
// frame, which the caller gives back by closing it.
type Connection interface {
	UUID() string
	Read() (videoframe.Frame, error)
	IsOpen() bool
	Close() error
}

type Backend interface {
	Connect(context.Context, string) (Connection, error)
}

type Options struct {
	Title       string
	JPEGQuality int
}

func (o Options) quality() int {
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		return defaultJPEGQuality
	}
	return o.JPEGQuality
}

func Default(opts Options) Backend {
	return OpenCV(opts)
}

func OpenCV(opts Options) Backend {
	return &openCVBackend{quality: opts.quality()}
}

func Mock(opts Options) Backend {
	return &mockVideoBackend{title: opts.Title, quality: opts.quality()}
}

func Dir() Backend {
	return &dirBackend{}
}

func Resolve(t string, opts Options) Backend {
	switch strings.ToLower(t) {
	case "mock":
		return Mock(opts)
	case "dir":
		return Dir()
	default:
		return Default(opts)
	}
}
