// Package surface is the transport-agnostic operation layer: every runtime
// capability is a named operation dispatched through a handler registry, and
// every failure carries a small closed error taxonomy. An embedding game
// server binds the dispatcher to whatever transport it speaks; this module
// itself opens no listener beyond the ops HTTP endpoint for health and
// metrics.
package surface

import (
	"context"
	"errors"
	"fmt"

	"github.com/duskfolk/duskfolk/internal/agent"
	"github.com/duskfolk/duskfolk/internal/civ"
	"github.com/duskfolk/duskfolk/internal/fleet"
	"github.com/duskfolk/duskfolk/internal/group"
	"github.com/duskfolk/duskfolk/internal/mind"
	"github.com/duskfolk/duskfolk/internal/persona"
	"github.com/duskfolk/duskfolk/internal/resilience"
	"github.com/duskfolk/duskfolk/pkg/memory"
)

// Code classifies an operation failure. The set is closed; callers branch on
// it to choose a transport status.
type Code string

const (
	// NotFound: the named agent, player, persona, quest, or group does not
	// exist.
	NotFound Code = "not_found"

	// InvalidArgument: the request itself is malformed or out of range.
	InvalidArgument Code = "invalid_argument"

	// Unavailable: the operation cannot run right now (agent stopped,
	// circuit open, no model backend, deadline hit). Retryable.
	Unavailable Code = "unavailable"

	// Conflict: the operation contradicts current state (duplicate
	// registration, wrong quest state, attacking your own territory).
	Conflict Code = "conflict"

	// Integrity: a store-side invariant failed. The operation aborted and
	// the store stayed consistent.
	Integrity Code = "integrity"
)

// ErrInvalidArgument tags request validation failures raised by handlers.
var ErrInvalidArgument = errors.New("surface: invalid argument")

// Error is an operation failure annotated with its taxonomy code.
type Error struct {
	Op   Kind
	Code Code
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with its classified code for operation op. A nil err returns
// nil; an err that is already an *Error passes through unchanged.
func E(op Kind, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Code: Classify(err), Err: err}
}

// Classify maps an error onto the taxonomy. Unrecognised errors classify as
// Integrity: by the time an error escapes a handler unmapped, the store layer
// is the usual culprit.
func Classify(err error) Code {
	switch {
	case errors.Is(err, memory.ErrNotFound),
		errors.Is(err, persona.ErrNotFound),
		errors.Is(err, fleet.ErrAgentNotFound),
		errors.Is(err, group.ErrGroupNotFound),
		errors.Is(err, group.ErrNotMember),
		errors.Is(err, group.ErrAgentUnknown):
		return NotFound

	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, group.ErrNoParticipants):
		return InvalidArgument

	case errors.Is(err, agent.ErrStopped),
		errors.Is(err, agent.ErrNotStarted),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, mind.ErrNoProvider),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return Unavailable

	case errors.Is(err, fleet.ErrAlreadyRegistered),
		errors.Is(err, fleet.ErrWorldRunning),
		errors.Is(err, fleet.ErrWorldNotRunning),
		errors.Is(err, persona.ErrAlreadyRegistered),
		errors.Is(err, memory.ErrAlreadyShared),
		errors.Is(err, memory.ErrAlreadyHeard),
		errors.Is(err, civ.ErrWrongState),
		errors.Is(err, civ.ErrOwnTerritory),
		errors.Is(err, group.ErrAlreadyMember),
		errors.Is(err, group.ErrGroupFull),
		errors.Is(err, group.ErrGroupInactive):
		return Conflict
	}
	return Integrity
}

// CodeOf extracts the taxonomy code from an error chain. Errors that never
// passed through E classify on the spot.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return Classify(err)
}
