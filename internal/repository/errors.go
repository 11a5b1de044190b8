// Package repository defines the SQL data access layer and the sentinel
// errors shared across repositories. These sentinel values allow higher
// layers such as handlers to distinguish between different failure
// scenarios.
package repository

import "errors"

// ErrEventNotFound is returned when no event row has the requested id.
var ErrEventNotFound = errors.New("event not found")

// ErrTicketNotFound is returned when no ticket row has the requested id.
// Handlers should translate this into an HTTP 404 response.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrAlreadyCheckedIn is returned when a ticket is presented at the door a
// second time. Handlers should translate this into an HTTP 409 response.
var ErrAlreadyCheckedIn = errors.New("ticket already checked in")
