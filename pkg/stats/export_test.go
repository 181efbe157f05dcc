package stats

import "time"

func OverloadNow(r *Recorder, overload func() time.Time) func() {
	nowRef := r.now
	r.now = overload
	return func() { r.now = nowRef }
}
