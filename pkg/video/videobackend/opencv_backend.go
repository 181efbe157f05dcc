package videobackend

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/tauraamui/dragoncam/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type openCVBackend struct {
	quality int
}

func (b *openCVBackend) Connect(cancel context.Context, addr string) (Connection, error) {
	conn := openCVConnection{quality: b.quality}
	if err := conn.connect(cancel, addr); err != nil {
		return nil, err
	}
	return &conn, nil
}

type openCVConnection struct {
	uuid    string
	mu      sync.Mutex
	isOpen  bool
	quality int
	vc      *gocv.VideoCapture
	mat     gocv.Mat
	buffers bufferPool
}

func (c *openCVConnection) connect(cancel context.Context, addr string) error {
	connAndError := make(chan openVideoStreamResult, 1)
	go openVideoStream(addr, connAndError)
	select {
	case r := <-connAndError:
		if r.err != nil {
			return r.err
		}
		c.vc = r.vc
		c.mat = gocv.NewMat()
		c.isOpen = true
		return nil
	case <-cancel.Done():
		// the capture may still open after we gave up on it
		go func() {
			if r := <-connAndError; r.vc != nil {
				r.vc.Close()
			}
		}()
		return xerror.New("connection cancelled")
	}
}

type openVideoStreamResult struct {
	vc  *gocv.VideoCapture
	err error
}

func openVideoStream(addr string, d chan openVideoStreamResult) {
	vc, err := openVideoCapture(deviceFromAddr(addr))
	d <- openVideoStreamResult{vc: vc, err: err}
}

// deviceFromAddr treats plain numbers as local device indexes.
func deviceFromAddr(addr string) interface{} {
	if id, err := strconv.Atoi(addr); err == nil {
		return id
	}
	return addr
}

var openVideoCapture = func(device interface{}) (*gocv.VideoCapture, error) {
	return gocv.OpenVideoCapture(device)
}

var readFromVideoConnection = func(vc *gocv.VideoCapture, mat *gocv.Mat) bool {
	if vc.IsOpened() {
		return vc.Read(mat)
	}
	return false
}

var encodeJPEG = func(mat gocv.Mat, quality int) ([]byte, error) {
	return gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
}

func (c *openCVConnection) UUID() string {
	if len(c.uuid) == 0 {
		c.uuid = uuid.NewString()
	}
	return c.uuid
}

func (c *openCVConnection) Read() (videoframe.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen {
		return nil, xerror.New("video connection is closed")
	}
	if ok := readFromVideoConnection(c.vc, &c.mat); !ok || c.mat.Empty() {
		return nil, xerror.New("unable to read from video connection")
	}
	encoded, err := encodeJPEG(c.mat, c.quality)
	if err != nil {
		return nil, xerror.Errorf("unable to encode frame as jpeg: %w", err)
	}
	return c.buffers.frame(encoded), nil
}

func (c *openCVConnection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOpen {
		return c.vc.IsOpened()
	}
	return false
}

func (c *openCVConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen {
		return nil
	}
	c.isOpen = false
	if err := c.mat.Close(); err != nil {
		return err
	}
	return c.vc.Close()
}
