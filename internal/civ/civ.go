// Package civ holds the civilisation-level state machines that run above the
// per-agent cognitive loops: autonomous goals, generated quests and quest
// chains, trade routes, and territorial conflict.
//
// Quests persist through [memory.CivStore] so accepted storylines survive a
// restart. Everything else is runtime texture and lives in mutex-guarded
// registries owned by the coordinator.
package civ

import "errors"

// ErrWrongState is returned when an operation targets a record whose state
// machine does not permit it, e.g. advancing a completed chain or trading on
// a disrupted route.
var ErrWrongState = errors.New("civ: operation not valid in current state")

// ErrOwnTerritory is returned when a faction initiates a battle for a
// territory it already controls.
var ErrOwnTerritory = errors.New("civ: faction already controls this territory")
