package control

import (
	"encoding/json"

	"github.com/tauraamui/xerror"
)

var (
	ErrMalformedCommand = xerror.New("malformed command")
	ErrUnknownCommand   = xerror.New("unknown command")
)

const (
	CmdMove     = "move"
	CmdStop     = "stop"
	CmdLED      = "led"
	CmdSetSpeed = "set_speed"
	CmdGetSpeed = "get_speed"
)

// Command is one JSON text message received from a control client.
// Older clients name the command with "action" instead of "cmd".
type Command struct {
	Cmd    string `json:"cmd"`
	Action string `json:"action,omitempty"`
	Angle  int    `json:"angle"`
	Speed  int    `json:"speed"`
	State  string `json:"state,omitempty"`
}

type SpeedReply struct {
	CarAngle int `json:"car_angle"`
	CarSpeed int `json:"car_speed"`
}

func ParseCommand(data []byte) (Command, error) {
	cmd := Command{}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, xerror.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if len(cmd.Cmd) == 0 {
		cmd.Cmd = cmd.Action
	}
	if len(cmd.Cmd) == 0 {
		return Command{}, xerror.Errorf("%w: missing cmd", ErrMalformedCommand)
	}
	return cmd, nil
}
