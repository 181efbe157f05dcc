package stream

import (
	"fmt"
	"io"
)

const (
	Boundary    = "123456789000000000000987654321"
	ContentType = "multipart/x-mixed-replace;boundary=" + Boundary

	partHeader        = "Content-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n"
	boundaryDelimiter = "\r\n--" + Boundary + "\r\n"
)

// WriteChunk writes one part of the multipart stream: the part header with
// the exact length, the image bytes, then the boundary delimiter.
func WriteChunk(w io.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, partHeader, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, boundaryDelimiter)
	return err
}
