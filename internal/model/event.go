package model

import "time"

// Event is the catalog's view of a sellable event as the reservation
// engine reads it. Phases and Categories hold the packed strings exactly
// as the catalog persists them; they are decoded by the phase and
// inventory packages and written back verbatim apart from the row being
// decremented.
//
// Fields:
//  ID         – catalog document identifier.
//  Name       – display name, copied onto tickets.
//  SubName    – optional tagline.
//  Location   – single current venue.
//  Date/Time  – event date and start time as entered by the organiser.
//  Phases     – ordered "{name}: {start}:{end}" entries.
//  Categories – "{name}:{price}:{quantity}[:{phase}]" rows.
//  UpdatedAt  – last catalog write.
type Event struct {
    ID         string    `json:"id"`
    Name       string    `json:"name"`
    SubName    string    `json:"sub_name,omitempty"`
    Location   string    `json:"location"`
    Date       string    `json:"date"`
    Time       string    `json:"time"`
    Phases     []string  `json:"phases"`
    Categories []string  `json:"categories"`
    UpdatedAt  time.Time `json:"updated_at"`
}
