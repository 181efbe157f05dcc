package stats

import (
	"errors"
	"time"

	"github.com/nakabonne/tstorage"
	"github.com/tauraamui/dragoncam/pkg/log"
	"github.com/tauraamui/xerror"
)

const (
	capturedMetric = "dragoncam_frames_captured"
	sentMetric     = "dragoncam_frames_sent"
	endpointLabel  = "endpoint"
)

// Recorder keeps per event time series of captured and sent frames in an
// in memory tstorage instance.
type Recorder struct {
	storage tstorage.Storage
	now     func() time.Time
}

func New() (*Recorder, error) {
	storage, err := tstorage.NewStorage(
		tstorage.WithTimestampPrecision(tstorage.Milliseconds),
		tstorage.WithRetention(time.Hour),
	)
	if err != nil {
		return nil, xerror.Errorf("unable to create stats storage: %w", err)
	}
	return &Recorder{storage: storage, now: time.Now}, nil
}

func (r *Recorder) insert(metric string, labels []tstorage.Label) {
	err := r.storage.InsertRows([]tstorage.Row{{
		Metric:    metric,
		Labels:    labels,
		DataPoint: tstorage.DataPoint{Timestamp: r.now().UnixMilli(), Value: 1},
	}})
	if err != nil {
		log.Warn("Unable to record %s: %v", metric, err)
	}
}

func (r *Recorder) RecordCapture() {
	r.insert(capturedMetric, nil)
}

func (r *Recorder) RecordSent(endpoint string) {
	r.insert(sentMetric, []tstorage.Label{{Name: endpointLabel, Value: endpoint}})
}

func (r *Recorder) count(metric string, labels []tstorage.Label, window time.Duration) int {
	end := r.now()
	points, err := r.storage.Select(metric, labels, end.Add(-window).UnixMilli(), end.UnixMilli()+1)
	if err != nil {
		if !errors.Is(err, tstorage.ErrNoDataPoints) {
			log.Warn("Unable to read %s: %v", metric, err)
		}
		return 0
	}
	return len(points)
}

// Captured counts frames captured within the window ending now.
func (r *Recorder) Captured(window time.Duration) int {
	return r.count(capturedMetric, nil, window)
}

// Sent counts frames sent by the named endpoint within the window ending now.
func (r *Recorder) Sent(endpoint string, window time.Duration) int {
	return r.count(sentMetric, []tstorage.Label{{Name: endpointLabel, Value: endpoint}}, window)
}

func (r *Recorder) Close() error {
	return r.storage.Close()
}
