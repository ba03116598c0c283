// Package actuator turns classifier labels into exoskeleton commands and
// delivers them to an output sink.
package actuator

import (
	"context"

	"go.uber.org/zap"

	"github.com/banshee-data/myolink/internal/classifier"
)

// Action is a discrete exoskeleton command.
type Action int

const (
	Relax Action = iota
	GripObject
	LiftArm
	ExtendArm
	RotateWrist
	BendElbow
	Unknown
)

// actions maps each known label to its command, indexed by label.
var actions = [classifier.NumLabels]Action{
	Relax,
	GripObject,
	LiftArm,
	ExtendArm,
	RotateWrist,
	BendElbow,
}

var actionNames = map[Action]string{
	Relax:       "Relax",
	GripObject:  "Grip Object",
	LiftArm:     "Lift Arm",
	ExtendArm:   "Extend Arm",
	RotateWrist: "Rotate Wrist",
	BendElbow:   "Bend Elbow",
	Unknown:     "Unknown Action",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return actionNames[Unknown]
}

// ActionFor returns the command for label. Every label outside the closed
// enumeration maps to Unknown.
func ActionFor(label classifier.Label) Action {
	if !label.Known() {
		return Unknown
	}
	return actions[label]
}

// Command is what a Sink receives for one cycle.
type Command struct {
	Action Action
	Label  classifier.Label
}

// Sink delivers commands to the actuation channel.
type Sink interface {
	Send(ctx context.Context, cmd Command) error
}

// ErrorObserver is notified of every failed delivery.
type ErrorObserver func(err error)

// Dispatcher maps labels to actions and hands them to a Sink. Delivery
// failures are logged and reported to the observer; they never propagate
// into the control loop.
type Dispatcher struct {
	sink    Sink
	logger  *zap.Logger
	onError ErrorObserver
}

// NewDispatcher creates a dispatcher. A nil logger disables logging and a
// nil observer is ignored.
func NewDispatcher(sink Sink, logger *zap.Logger, onError ErrorObserver) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sink: sink, logger: logger, onError: onError}
}

// Dispatch sends the command for label and returns the chosen action.
func (d *Dispatcher) Dispatch(ctx context.Context, label classifier.Label) Action {
	action := ActionFor(label)
	if err := d.sink.Send(ctx, Command{Action: action, Label: label}); err != nil {
		d.logger.Warn("actuator command not delivered",
			zap.Stringer("action", action),
			zap.Int("label", int(label)),
			zap.Error(err))
		if d.onError != nil {
			d.onError(err)
		}
	}
	return action
}
