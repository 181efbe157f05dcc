package control

import "github.com/tauraamui/dragoncam/pkg/log"

type logDriver struct{}

// LogDriver reports every output instead of driving hardware.
func LogDriver() Driver {
	return logDriver{}
}

func (logDriver) Forward(left, right int) {
	log.Info("Driving forward, left %d right %d", left, right)
}

func (logDriver) Stop() {
	log.Info("Stopping")
}

func (logDriver) SetLED(on bool) {
	if on {
		log.Info("LED on")
		return
	}
	log.Info("LED off")
}
