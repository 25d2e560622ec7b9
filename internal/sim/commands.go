package sim

import "time"

type CommandType string

const (
	CmdKey       CommandType = "key"
	CmdFault     CommandType = "fault"
	CmdRemediate CommandType = "remediate"
	CmdReset     CommandType = "reset"
)

type Command interface {
	Type() CommandType
	ReceivedAt() time.Time
}

// KeyCommand emulates a key press.
type KeyCommand struct {
	At  time.Time
	Key rune `json:"key"`
}

func (c KeyCommand) Type() CommandType     { return CmdKey }
func (c KeyCommand) ReceivedAt() time.Time { return c.At }

type FaultCommand struct {
	At    time.Time
	Fault Fault `json:"fault"`
}

func (c FaultCommand) Type() CommandType     { return CmdFault }
func (c FaultCommand) ReceivedAt() time.Time { return c.At }

// RemediateCommand injects Truth, or the configured payload when nil.
type RemediateCommand struct {
	At    time.Time
	Truth *GroundTruth `json:"truth,omitempty"`
}

func (c RemediateCommand) Type() CommandType     { return CmdRemediate }
func (c RemediateCommand) ReceivedAt() time.Time { return c.At }

type ResetCommand struct{ At time.Time }

func (c ResetCommand) Type() CommandType     { return CmdReset }
func (c ResetCommand) ReceivedAt() time.Time { return c.At }
