package control

import (
	"sync"

	"github.com/tauraamui/dragoncam/pkg/log"
	"github.com/tauraamui/xerror"
)

type Profile string

const (
	// ProfilePhone drives at the stored speed preset and only steers.
	ProfilePhone Profile = "phone"
	// ProfileDesktop drives at the commanded speed and starts stopped.
	ProfileDesktop Profile = "desktop"
)

func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfilePhone, ProfileDesktop:
		return Profile(s), nil
	}
	return "", xerror.Errorf("unknown control profile %q", s)
}

// Driver moves the vehicle. Hardware output is not part of this module.
type Driver interface {
	Forward(left, right int)
	Stop()
	SetLED(on bool)
}

type PresetStore interface {
	LoadSpeedPreset() (int, error)
	SaveSpeedPreset(int) error
}

type State struct {
	Angle       int
	Speed       int
	SpeedPreset int
	Left        int
	Right       int
	LED         bool
}

// Controller maps commands onto the shared vehicle state. One controller
// is shared by every control endpoint.
type Controller struct {
	mu      sync.Mutex
	driver  Driver
	presets PresetStore
	state   State
}

func NewController(driver Driver, presets PresetStore) *Controller {
	c := Controller{driver: driver, presets: presets}
	if presets != nil {
		speed, err := presets.LoadSpeedPreset()
		if err != nil {
			log.Warn("Unable to load speed preset, using 0: %v", err)
		} else {
			c.state.SpeedPreset = speed
		}
	}
	return &c
}

// WheelSpeeds offsets each channel from the base speed by half the angle,
// in opposite directions, truncating toward zero.
func WheelSpeeds(speed, angle int) (left, right int) {
	half := float64(angle) * 0.5
	return int(float64(speed) + half), int(float64(speed) - half)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open is called once per new control connection.
func (c *Controller) Open(profile Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if profile == ProfileDesktop {
		c.state.Speed = 0
	}
}

func (c *Controller) Apply(profile Profile, cmd Command) (*SpeedReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd.Cmd {
	case CmdMove:
		c.move(profile, cmd)
	case CmdStop:
		c.stop()
	case CmdLED:
		c.led(cmd.State)
	case CmdSetSpeed:
		c.state.SpeedPreset = cmd.Speed
		log.Info("Speed preset set to %d", cmd.Speed)
		if c.presets != nil {
			if err := c.presets.SaveSpeedPreset(cmd.Speed); err != nil {
				return nil, xerror.Errorf("unable to persist speed preset: %w", err)
			}
		}
	case CmdGetSpeed:
		return &SpeedReply{CarAngle: c.state.Angle, CarSpeed: c.state.Speed}, nil
	default:
		return nil, xerror.Errorf("%w: %s", ErrUnknownCommand, cmd.Cmd)
	}
	return nil, nil
}

func (c *Controller) move(profile Profile, cmd Command) {
	c.state.Angle = cmd.Angle
	c.state.Speed = cmd.Speed
	if profile == ProfilePhone {
		c.state.Speed = c.state.SpeedPreset
	}
	log.Debug("Angle %d and speed %d updated", c.state.Angle, c.state.Speed)

	if c.state.Speed == 0 {
		c.stop()
		return
	}
	c.state.Left, c.state.Right = WheelSpeeds(c.state.Speed, c.state.Angle)
	c.driver.Forward(c.state.Left, c.state.Right)
}

func (c *Controller) stop() {
	c.state.Speed = 0
	c.state.Left, c.state.Right = 0, 0
	c.driver.Stop()
}

func (c *Controller) led(state string) {
	switch state {
	case "on":
		c.state.LED = true
		c.driver.SetLED(true)
	case "off":
		c.state.LED = false
		c.driver.SetLED(false)
	default:
		log.Warn("Unknown LED state %q", state)
	}
}
