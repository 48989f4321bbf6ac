package model

import (
	"time"

	"github.com/google/uuid"
)

// CommandType identifies the kind of autonomous command issued by the
// relay's decision engine.
type CommandType string

const (
	CommandModeChange       CommandType = "MODE_CHANGE"
	CommandTrajectoryAdjust CommandType = "TRAJECTORY_ADJUST"
	CommandThermalControl   CommandType = "THERMAL_CONTROL"
)

// Well-known parameter keys and values.
const (
	ParamMode   = "mode"
	ParamAction = "action"
	ParamReason = "reason"
	ActionCool  = "COOLING"
	ActionHeat  = "HEATING"
)

// Command is an instruction for a spacecraft, produced only by the
// decision engine and executed by the telemetry source.
type Command struct {
	ID           string            `json:"id"`
	SpacecraftID string            `json:"spacecraft_id"`
	Type         CommandType       `json:"type"`
	Parameters   map[string]string `json:"parameters"`
	IssuedAt     time.Time         `json:"issued_at"`
}

// NewCommand constructs a command with a fresh ID.
func NewCommand(spacecraftID string, t CommandType, params map[string]string, issuedAt time.Time) Command {
	if params == nil {
		params = map[string]string{}
	}
	return Command{
		ID:           uuid.NewString(),
		SpacecraftID: spacecraftID,
		Type:         t,
		Parameters:   params,
		IssuedAt:     issuedAt,
	}
}
