package model

import "time"

// Lock is the ephemeral mutual-exclusion record guarding one purchase
// attempt. It is created before payment is attempted and removed when the
// attempt terminates; a lock past ExpiresAt is stale and may be swept or
// taken over.
//
// Fields:
//  Key       – what is being guarded (an inventory row or a ticket id).
//  ID        – random owner token; only its holder may release the lock.
//  TicketID  – synthetic ticket identifier of the attempt.
//  EventID   – event being purchased.
//  BuyerID   – buyer holding the lock.
//  CreatedAt – acquisition time.
//  ExpiresAt – time after which the lock is considered stale.
type Lock struct {
    Key       string    `json:"key"`
    ID        string    `json:"id"`
    TicketID  string    `json:"ticket_id"`
    EventID   string    `json:"event_id"`
    BuyerID   string    `json:"buyer_id"`
    CreatedAt time.Time `json:"created_at"`
    ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the lock is stale at now.
func (l Lock) Expired(now time.Time) bool { return !now.Before(l.ExpiresAt) }
