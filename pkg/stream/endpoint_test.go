package stream_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tacusci/logging/v2"
	"github.com/tauraamui/dragoncam/pkg/stream"
)

type countingRecorder struct {
	mu   sync.Mutex
	sent map[string]int
}

func (r *countingRecorder) RecordSent(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = map[string]int{}
	}
	r.sent[endpoint]++
}

func (r *countingRecorder) Captured(time.Duration) int { return 42 }

func (r *countingRecorder) Sent(endpoint string, _ time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[endpoint]
}

func newTestEngine(cam *fakeCamera) *stream.Engine {
	return stream.NewEngine(stream.Settings{
		Title:           "fake",
		Connector:       cam.connector(),
		CaptureInterval: time.Millisecond,
		RetryDelay:      time.Millisecond,
		GracePeriod:     time.Second,
	})
}

func readChunk(t *testing.T, r *bufio.Reader) []byte {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Content-Type: image/jpeg\r\n", line)

	line, err = r.ReadString('\n')
	require.NoError(t, err)
	var length int
	_, err = fmt.Sscanf(line, "Content-Length: %d\r\n", &length)
	require.NoError(t, err)

	line, err = r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "\r\n", line)

	data := make([]byte, length)
	_, err = io.ReadFull(r, data)
	require.NoError(t, err)

	trailer := make([]byte, len(chunkTrailer))
	_, err = io.ReadFull(r, trailer)
	require.NoError(t, err)
	require.Equal(t, chunkTrailer, string(trailer))
	return data
}

func TestEndpointStreamsMultipartChunks(t *testing.T) {
	logging.CurrentLoggingLevel = logging.SilentLevel
	defer func() { logging.CurrentLoggingLevel = logging.WarnLevel }()

	cam := newFakeCamera()
	engine := newTestEngine(cam)
	recorder := countingRecorder{}
	endpoint := stream.NewEndpoint(engine, stream.EndpointSettings{
		Name: "primary", Path: "/stream", EmptySlotRetry: time.Millisecond, Recorder: &recorder,
	})
	server := httptest.NewServer(endpoint.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/stream")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "multipart/x-mixed-replace;boundary=123456789000000000000987654321", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	body := bufio.NewReader(resp.Body)
	for i := 0; i < 3; i++ {
		data := readChunk(t, body)
		require.NotEmpty(t, data)
		// every byte of a fake frame carries its acquire count
		assert.Equal(t, strings.Repeat(string(data[:1]), len(data)), string(data))
	}
	assert.Equal(t, 1, engine.Attached())
	assert.Equal(t, stream.CaptureRunning, engine.State())

	resp.Body.Close()
	waitFor(t, func() bool { return engine.Attached() == 0 })
	assert.Equal(t, stream.CaptureStopped, engine.State())
	assert.True(t, engine.Slot().IsEmpty())
	assert.GreaterOrEqual(t, recorder.Sent("primary", time.Minute), 3)

	counts := cam.counts()
	assert.Equal(t, counts.acquired, counts.released)
}

func TestEndpointsShareOneEngine(t *testing.T) {
	is := is.New(t)
	logging.CurrentLoggingLevel = logging.SilentLevel
	defer func() { logging.CurrentLoggingLevel = logging.WarnLevel }()

	engine := newTestEngine(newFakeCamera())
	primary := httptest.NewServer(stream.NewEndpoint(engine, stream.EndpointSettings{
		Name: "primary", Path: "/stream", EmptySlotRetry: time.Millisecond,
	}).Handler())
	defer primary.Close()
	alternate := httptest.NewServer(stream.NewEndpoint(engine, stream.EndpointSettings{
		Name: "alternate", Path: "/alt_stream", EmptySlotRetry: time.Millisecond,
	}).Handler())
	defer alternate.Close()

	a, err := http.Get(primary.URL + "/stream")
	is.NoErr(err)
	readChunk(t, bufio.NewReader(a.Body))

	b, err := http.Get(alternate.URL + "/alt_stream")
	is.NoErr(err)
	readChunk(t, bufio.NewReader(b.Body))

	is.Equal(engine.Attached(), 2)
	is.Equal(engine.CaptureStarts(), 1)

	a.Body.Close()
	waitFor(t, func() bool { return engine.Attached() == 1 })
	is.Equal(engine.State(), stream.CaptureRunning)

	b.Body.Close()
	waitFor(t, func() bool { return engine.Attached() == 0 })
	is.Equal(engine.State(), stream.CaptureStopped)
	is.Equal(engine.CaptureStarts(), 1)
}

func TestEndpointRejectsNonGetRequests(t *testing.T) {
	is := is.New(t)

	engine := newTestEngine(newFakeCamera())
	server := httptest.NewServer(stream.NewEndpoint(engine, stream.EndpointSettings{Name: "primary"}).Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/stream", "text/plain", strings.NewReader("frame please"))
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusMethodNotAllowed)
	is.Equal(engine.Attached(), 0)
	is.Equal(engine.CaptureStarts(), 0)
}

func TestEndpointAnswersUnavailableWhenEngineClosed(t *testing.T) {
	is := is.New(t)
	logging.CurrentLoggingLevel = logging.SilentLevel
	defer func() { logging.CurrentLoggingLevel = logging.WarnLevel }()

	engine := newTestEngine(newFakeCamera())
	engine.Close()
	server := httptest.NewServer(stream.NewEndpoint(engine, stream.EndpointSettings{Name: "primary"}).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/stream")
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusServiceUnavailable)
	is.Equal(engine.Attached(), 0)
}

func TestEndpointServesStats(t *testing.T) {
	is := is.New(t)

	engine := newTestEngine(newFakeCamera())
	server := httptest.NewServer(stream.NewEndpoint(engine, stream.EndpointSettings{
		Name: "primary", Recorder: &countingRecorder{},
	}).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/stats")
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.Header.Get("Content-Type"), "application/json")

	stats := stream.Stats{}
	is.NoErr(json.NewDecoder(resp.Body).Decode(&stats))
	is.Equal(stats, stream.Stats{
		Attached: 0, CaptureState: "stopped", CapturedLastMinute: 42, SentLastMinute: 0,
	})
}

func TestEndpointShutdownEndsSessions(t *testing.T) {
	is := is.New(t)
	logging.CurrentLoggingLevel = logging.SilentLevel
	defer func() { logging.CurrentLoggingLevel = logging.WarnLevel }()

	engine := newTestEngine(newFakeCamera())
	endpoint := stream.NewEndpoint(engine, stream.EndpointSettings{
		Name: "primary", Address: "127.0.0.1:0", Path: "/stream", EmptySlotRetry: time.Millisecond,
	})
	is.NoErr(endpoint.Start())

	resp, err := http.Get("http://" + endpoint.Addr() + "/stream")
	is.NoErr(err)
	defer resp.Body.Close()
	readChunk(t, bufio.NewReader(resp.Body))
	is.Equal(engine.Attached(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	is.NoErr(endpoint.Shutdown(ctx))
	waitFor(t, func() bool { return engine.Attached() == 0 })
	is.Equal(engine.State(), stream.CaptureStopped)
}
