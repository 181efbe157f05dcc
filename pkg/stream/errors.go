package stream

import "github.com/tauraamui/xerror"

var (
	ErrCaptureStillDraining = xerror.New("capture from previous session is still draining")
	ErrEngineClosed         = xerror.New("stream engine is closed")
)
