package camera

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tauraamui/dragoncam/pkg/video/videobackend"
	"github.com/tauraamui/dragoncam/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

type Connection interface {
	UUID() string
	Title() string
	Read() (videoframe.Frame, error)
	IsOpen() bool
	IsClosing() bool
	Close() error
}

type connection struct {
	uuid      string
	title     string
	mu        sync.Mutex
	isClosing bool
	vc        videobackend.Connection
}

func (c *connection) UUID() string {
	return c.uuid
}

func (c *connection) Title() string {
	return c.title
}

func (c *connection) Read() (videoframe.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosing {
		return nil, xerror.New("unable to read frame from closed connection")
	}
	frame, err := c.vc.Read()
	if err != nil {
		return nil, xerror.Errorf("unable to read frame from connection: %w", err)
	}
	return frame, nil
}

func (c *connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc.IsOpen()
}

func (c *connection) IsClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isClosing
}

func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosing {
		return nil
	}
	c.isClosing = true
	return c.vc.Close()
}

func connect(ctx context.Context, title, addr string, backend videobackend.Backend) (Connection, error) {
	vc, err := backend.Connect(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("Unable to connect to camera [%s]: %w", title, err)
	}
	return &connection{
		uuid:  uuid.NewString(),
		title: title,
		vc:    vc,
	}, nil
}

func Connect(title, addr string, backend videobackend.Backend) (Connection, error) {
	return connect(context.Background(), title, addr, backend)
}

func ConnectWithCancel(cancel context.Context, title, addr string, backend videobackend.Backend) (Connection, error) {
	return connect(cancel, title, addr, backend)
}
