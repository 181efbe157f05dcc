package videobackend

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/tauraamui/dragoncam/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

// dirBackend replays the JPEG files found in a directory, in name
// order, looping back to the first once the last has been read.
type dirBackend struct{}

func (b *dirBackend) Connect(cancel context.Context, addr string) (Connection, error) {
	select {
	case <-cancel.Done():
		return nil, xerror.New("connection cancelled")
	default:
	}

	files, err := listJPEGFiles(addr)
	if err != nil {
		return nil, err
	}
	return &dirConnection{root: addr, files: files, isOpen: true}, nil
}

func listJPEGFiles(root string) ([]string, error) {
	infos, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, xerror.Errorf("unable to read frames directory %s: %w", root, err)
	}

	files := []string{}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(info.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(root, info.Name()))
		}
	}

	if len(files) == 0 {
		return nil, xerror.Errorf("no jpeg frames found in directory %s", root)
	}
	sort.Strings(files)
	return files, nil
}

type dirConnection struct {
	uuid    string
	mu      sync.Mutex
	isOpen  bool
	root    string
	files   []string
	next    int
	buffers bufferPool
}

func (c *dirConnection) UUID() string {
	if len(c.uuid) == 0 {
		c.uuid = uuid.NewString()
	}
	return c.uuid
}

func (c *dirConnection) Read() (videoframe.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen {
		return nil, xerror.New("directory connection is closed")
	}

	path := c.files[c.next]
	c.next = (c.next + 1) % len(c.files)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, xerror.Errorf("unable to read frame file %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, xerror.Errorf("frame file %s is empty", path)
	}
	return c.buffers.frame(data), nil
}

func (c *dirConnection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpen
}

func (c *dirConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isOpen = false
	return nil
}
