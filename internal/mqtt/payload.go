package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// statePayload is the HomeAssistant JSON light schema, used for both state
// reports and set commands. Brightness carries the step directly.
type statePayload struct {
	State      string `json:"state,omitempty"`
	Brightness *int   `json:"brightness,omitempty"`
}

// Command is a parsed set request. Nil fields were absent from the payload.
type Command struct {
	On   *bool
	Step *int
}

// ParseCommand decodes a JSON light set payload. "ON" combined with
// brightness 0 drops the brightness: HomeAssistant uses 0 as the null level
// and an explicit zero would contradict the requested ON anyway.
func ParseCommand(payload []byte) (Command, error) {
	var p statePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Command{}, fmt.Errorf("malformed command payload: %w", err)
	}

	var cmd Command
	switch strings.ToUpper(p.State) {
	case "":
	case "ON":
		v := true
		cmd.On = &v
	case "OFF":
		v := false
		cmd.On = &v
	default:
		return Command{}, fmt.Errorf("unknown state %q in command payload", p.State)
	}

	if p.Brightness != nil {
		if cmd.On != nil && *cmd.On && *p.Brightness == 0 {
			return cmd, nil
		}
		cmd.Step = p.Brightness
	}
	return cmd, nil
}

// FormatState encodes a state report in the JSON light schema.
func FormatState(on bool, step int) ([]byte, error) {
	state := "OFF"
	if on {
		state = "ON"
	}
	return json.Marshal(statePayload{State: state, Brightness: &step})
}

// ParseLux decodes a sensor payload: either a bare number or a JSON object
// carrying an illuminance field (zigbee2mqtt style).
func ParseLux(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	var obj struct {
		Illuminance    *float64 `json:"illuminance"`
		IlluminanceLux *float64 `json:"illuminance_lux"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return 0, fmt.Errorf("unparseable lux payload %q", s)
	}

	switch {
	case obj.IlluminanceLux != nil:
		return *obj.IlluminanceLux, nil
	case obj.Illuminance != nil:
		return *obj.Illuminance, nil
	}
	return 0, fmt.Errorf("no illuminance field in payload %q", s)
}
