package configdef

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/dealancer/validate.v2"
)

type Camera struct {
	Title             string `json:"title" validate:"empty=false"`
	Address           string `json:"address"`
	Backend           string `json:"backend" validate:"one_of=opencv,mock,dir"`
	JPEGQuality       int    `json:"jpeg_quality" validate:"gte=1 & lte=100"`
	CaptureIntervalMS int    `json:"capture_interval_ms" validate:"gte=1"`
	RetryDelayMS      int    `json:"retry_delay_ms" validate:"gte=1"`
}

func (c Camera) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalMS) * time.Millisecond
}

func (c Camera) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

type Stream struct {
	Name    string `json:"name" validate:"empty=false"`
	Address string `json:"address" validate:"empty=false"`
	Path    string `json:"path" validate:"empty=false"`
	MaxFPS  int    `json:"max_fps" validate:"gte=0"`
}

type Control struct {
	Name    string `json:"name" validate:"empty=false"`
	Address string `json:"address" validate:"empty=false"`
	Path    string `json:"path" validate:"empty=false"`
	Profile string `json:"profile" validate:"one_of=phone,desktop"`
}

type Values struct {
	Debug               bool      `json:"debug"`
	Secret              string    `json:"secret"`
	RequireAuth         bool      `json:"require_auth"`
	Camera              Camera    `json:"camera"`
	DetachGracePeriodMS int       `json:"detach_grace_period_ms" validate:"gte=1"`
	EmptySlotRetryMS    int       `json:"empty_slot_retry_ms" validate:"gte=1"`
	ResendAfterMS       int       `json:"resend_after_ms" validate:"gte=0"`
	Streams             []Stream  `json:"streams"`
	Controls            []Control `json:"controls"`
}

func (v Values) DetachGracePeriod() time.Duration {
	return time.Duration(v.DetachGracePeriodMS) * time.Millisecond
}

func (v Values) EmptySlotRetry() time.Duration {
	return time.Duration(v.EmptySlotRetryMS) * time.Millisecond
}

func (v Values) ResendAfter() time.Duration {
	return time.Duration(v.ResendAfterMS) * time.Millisecond
}

// RunValidate applies the cross field checks and then every validate tag.
func (v Values) RunValidate() error {
	if err := v.Validate(); err != nil {
		return err
	}
	return validate.Validate(v)
}

func (v Values) Validate() error {
	const validationErrorHeader = "validation failed: %w"
	if v.RequireAuth && len(v.Secret) == 0 {
		return fmt.Errorf(validationErrorHeader, errors.New("secret is required when require_auth is set"))
	}
	if hasDup(streamNames(v.Streams)) {
		return fmt.Errorf(validationErrorHeader, errors.New("stream names must be unique"))
	}
	if hasDup(controlNames(v.Controls)) {
		return fmt.Errorf(validationErrorHeader, errors.New("control names must be unique"))
	}
	if hasDup(addresses(v.Streams, v.Controls)) {
		return fmt.Errorf(validationErrorHeader, errors.New("stream and control addresses must be unique"))
	}
	return nil
}

func streamNames(streams []Stream) []string {
	names := make([]string, 0, len(streams))
	for _, s := range streams {
		names = append(names, s.Name)
	}
	return names
}

func controlNames(controls []Control) []string {
	names := make([]string, 0, len(controls))
	for _, c := range controls {
		names = append(names, c.Name)
	}
	return names
}

func addresses(streams []Stream, controls []Control) []string {
	addrs := make([]string, 0, len(streams)+len(controls))
	for _, s := range streams {
		addrs = append(addrs, s.Address)
	}
	for _, c := range controls {
		addrs = append(addrs, c.Address)
	}
	return addrs
}

func hasDup(values []string) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
