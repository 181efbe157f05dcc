package videobackend

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"sync"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"github.com/tauraamui/dragoncam/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const offlineStreamLabel = "DC_OFFLINE_STREAM"

type mockVideoBackend struct {
	title   string
	quality int
}

func (b *mockVideoBackend) Connect(cancel context.Context, addr string) (Connection, error) {
	select {
	case <-cancel.Done():
		return nil, xerror.New("connection cancelled")
	default:
	}
	title := b.title
	if len(title) == 0 {
		title = addr
	}
	return &mockVideoConnection{cameraTitle: title, quality: b.quality, isOpen: true}, nil
}

// mockVideoConnection renders a test card carrying the camera title
// and the current time instead of reading from a device.
type mockVideoConnection struct {
	uuid            string
	mu              sync.Mutex
	isOpen          bool
	cameraTitle     string
	quality         int
	baseFrameCanvas image.Image
	buffers         bufferPool
}

func (mvc *mockVideoConnection) UUID() string {
	if len(mvc.uuid) == 0 {
		mvc.uuid = uuid.NewString()
	}
	return mvc.uuid
}

func (mvc *mockVideoConnection) Read() (videoframe.Frame, error) {
	mvc.mu.Lock()
	defer mvc.mu.Unlock()

	if !mvc.isOpen {
		return nil, xerror.New("mock video connection is closed")
	}

	if mvc.baseFrameCanvas == nil {
		mvc.baseFrameCanvas = renderBaseFrameCanvas()
	}

	img, err := drawTextLayerOntoBaseFrameClone(mvc.baseFrameCanvas, mvc.cameraTitle)
	if err != nil {
		return nil, err
	}

	buf := bytes.Buffer{}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: mvc.quality}); err != nil {
		return nil, xerror.Errorf("unable to encode offline stream frame: %w", err)
	}

	return mvc.buffers.frame(buf.Bytes()), nil
}

func (mvc *mockVideoConnection) IsOpen() bool {
	mvc.mu.Lock()
	defer mvc.mu.Unlock()
	return mvc.isOpen
}

func (mvc *mockVideoConnection) Close() error {
	mvc.mu.Lock()
	defer mvc.mu.Unlock()
	mvc.isOpen = false
	mvc.baseFrameCanvas = nil
	return nil
}

func drawTextLayerOntoBaseFrameClone(base image.Image, title string) (image.Image, error) {
	baseClone := cloneImage(base)
	lines := []string{offlineStreamLabel, title, time.Now().Format("15:04:05.000")}
	for i, line := range lines {
		if err := drawText(baseClone, 5, 50+i*130, line); err != nil {
			return nil, xerror.Errorf("unable to draw text onto in-mem image for offline stream: %w", err)
		}
	}
	return baseClone, nil
}

var (
	parsedFontOnce sync.Once
	parsedFont     *truetype.Font
	parsedFontErr  error
)

func loadFont() (*truetype.Font, error) {
	parsedFontOnce.Do(func() {
		parsedFont, parsedFontErr = freetype.ParseFont(goregular.TTF)
	})
	return parsedFont, parsedFontErr
}

func renderBaseFrameCanvas() image.Image {
	var w, h int = 640, 480
	var hw, hh float64 = float64(w / 2), float64(h / 2)
	r := 200.0
	θ := 2 * math.Pi / 3
	cr := &circle{hw - r*math.Sin(0), hh - r*math.Cos(0), 300}
	cg := &circle{hw - r*math.Sin(θ), hh - r*math.Cos(θ), 300}
	cb := &circle{hw - r*math.Sin(-θ), hh - r*math.Cos(-θ), 300}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{
				cr.Brightness(float64(x), float64(y)),
				cg.Brightness(float64(x), float64(y)),
				cb.Brightness(float64(x), float64(y)),
				255,
			})
		}
	}
	return img
}

func cloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func drawText(canvas *image.RGBA, x, y int, text string) error {
	fontFace, err := loadFont()
	if err != nil {
		return err
	}
	fontDrawer := &font.Drawer{
		Dst: canvas,
		Src: image.White,
		Face: truetype.NewFace(fontFace, &truetype.Options{
			Size:    48,
			Hinting: font.HintingFull,
		}),
	}
	textBounds, _ := fontDrawer.BoundString(text)
	textHeight := textBounds.Max.Y - textBounds.Min.Y
	fontDrawer.Dot = fixed.Point26_6{
		X: fixed.I(x),
		Y: fixed.I(y-textHeight.Ceil())/2 + fixed.I(textHeight.Ceil()),
	}
	fontDrawer.DrawString(text)
	return nil
}

type circle struct {
	X, Y, R float64
}

func (c *circle) Brightness(x, y float64) uint8 {
	var dx, dy float64 = c.X - x, c.Y - y
	if math.Sqrt(dx*dx+dy*dy)/c.R > 1 {
		return 0
	}
	return 255
}
