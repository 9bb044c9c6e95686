package state

import (
	"encoding/json"
	"fmt"
	"time"
)

type ControlState int

const (
	Unknown ControlState = iota
	Enabled
	Disabled
)

func (s ControlState) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	}
	return fmt.Sprintf("ControlState(%d)", int(s))
}

func (s ControlState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	}
	return "none"
}

// Target is the state reached once the action has been issued.
func (a Action) Target(current ControlState) ControlState {
	switch a {
	case ActionStart:
		return Enabled
	case ActionStop:
		return Disabled
	}
	return current
}

// Decide only returns an action when price is on the other side of limit than the current
// state. A price equal to limit counts as low.
func Decide(price, limit float64, current ControlState) Action {
	if price > limit {
		if current != Disabled {
			return ActionStop
		}
		return ActionNone
	}
	if current != Enabled {
		return ActionStart
	}
	return ActionNone
}

type Snapshot struct {
	Time      time.Time    `json:"time"`
	Price     float64      `json:"price"`
	RateLimit float64      `json:"rateLimit"`
	State     ControlState `json:"state"`
	Services  []string     `json:"services,omitempty"`
}

func (s Snapshot) Map() map[string]interface{} {
	m := map[string]interface{}{
		"price":     s.Price,
		"rateLimit": s.RateLimit,
		"state":     s.State.String(),
	}
	if len(s.Services) > 0 {
		m["services"] = s.Services
	}
	return m
}
