// Package lock provides the create-if-absent mutual-exclusion primitive
// that guards a purchase attempt, and the key scheme it is addressed by.
package lock

import (
	"errors"
	"strings"
)

var (
	// ErrHeld is returned by Acquire when a live lock already exists for
	// the key.
	ErrHeld = errors.New("lock: held by another reservation")
	// ErrNotHeld is returned by Release when the key is absent or owned by
	// a different lock id.
	ErrNotHeld = errors.New("lock: not held")
)

// Scope selects what a lock guards.
type Scope string

const (
	// ScopeRow serialises attempts on one (event, category, phase) row.
	ScopeRow Scope = "row"
	// ScopeTicket guards a single attempt only; concurrent buyers of the
	// same row do not block each other and oversell protection rests on
	// the conditional decrement.
	ScopeTicket Scope = "ticket"
)

// RowKey is the lock key for an inventory row.
func RowKey(eventID, category, phase string) string {
	return strings.Join([]string{"row", escape(eventID), escape(category), escape(phase)}, ":")
}

// TicketKey is the lock key for a single attempt.
func TicketKey(ticketID string) string { return "ticket:" + escape(ticketID) }

// KeyFor builds the key for scope.
func KeyFor(scope Scope, eventID, category, phase, ticketID string) string {
	if scope == ScopeTicket {
		return TicketKey(ticketID)
	}
	return RowKey(eventID, category, phase)
}

// escape keeps ':' inside a component from colliding with the separator.
func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, ":", `\:`).Replace(s)
}
