package config

import "github.com/tauraamui/dragoncam/pkg/configdef"

type defaultSettingKey uint

const (
	CAMERA              defaultSettingKey = 0x0
	JPEGQUALITY         defaultSettingKey = 0x1
	CAPTUREINTERVALMS   defaultSettingKey = 0x2
	RETRYDELAYMS        defaultSettingKey = 0x3
	DETACHGRACEPERIODMS defaultSettingKey = 0x4
	EMPTYSLOTRETRYMS    defaultSettingKey = 0x5
	STREAMS             defaultSettingKey = 0x6
	CONTROLS            defaultSettingKey = 0x7
	RESENDAFTERMS       defaultSettingKey = 0x8
)

var defaultSettings = map[defaultSettingKey]interface{}{
	CAMERA: configdef.Camera{
		Title:   "dragoncam",
		Address: "0",
		Backend: "opencv",
	},
	JPEGQUALITY:         80,
	CAPTUREINTERVALMS:   10,
	RETRYDELAYMS:        10,
	DETACHGRACEPERIODMS: 100,
	EMPTYSLOTRETRYMS:    10,
	RESENDAFTERMS:       1000,
	STREAMS: []configdef.Stream{
		{Name: "primary", Address: ":81", Path: "/stream"},
		{Name: "alternate", Address: ":82", Path: "/alt_stream"},
	},
	CONTROLS: []configdef.Control{
		{Name: "phone", Address: ":91", Path: "/ws", Profile: "phone"},
		{Name: "desktop", Address: ":92", Path: "/alt_ws", Profile: "desktop"},
	},
}

func defaultValues() configdef.Values {
	values := configdef.Values{Camera: defaultSettings[CAMERA].(configdef.Camera)}
	applyDefaults(&values)
	return values
}

// applyDefaults fills in every zero valued setting, leaving explicit values alone.
func applyDefaults(values *configdef.Values) {
	cam := &values.Camera
	if len(cam.Backend) == 0 {
		cam.Backend = defaultSettings[CAMERA].(configdef.Camera).Backend
	}
	setIfZero(&cam.JPEGQuality, JPEGQUALITY)
	setIfZero(&cam.CaptureIntervalMS, CAPTUREINTERVALMS)
	setIfZero(&cam.RetryDelayMS, RETRYDELAYMS)
	setIfZero(&values.DetachGracePeriodMS, DETACHGRACEPERIODMS)
	setIfZero(&values.EmptySlotRetryMS, EMPTYSLOTRETRYMS)
	setIfZero(&values.ResendAfterMS, RESENDAFTERMS)

	if values.Streams == nil {
		values.Streams = append([]configdef.Stream{}, defaultSettings[STREAMS].([]configdef.Stream)...)
	}
	if values.Controls == nil {
		values.Controls = append([]configdef.Control{}, defaultSettings[CONTROLS].([]configdef.Control)...)
	}
}

func setIfZero(v *int, key defaultSettingKey) {
	if *v == 0 {
		*v = defaultSettings[key].(int)
	}
}
