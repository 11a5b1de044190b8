// Package phase resolves which sales phase of an event is current and which
// inventory rows are offerable to buyers under it.
//
// Phases are stored as "{name}: {start}:{end}" where either date may be
// empty. Dates use the catalog's "January 2, 2006" layout; ISO dates are
// accepted as well.
package phase

import (
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ticket-inventory/internal/inventory"
)

// ErrEmptyName is returned by Parse for entries without a phase name.
var ErrEmptyName = errors.New("phase: empty name")

var dateLayouts = []string{"January 2, 2006", "Jan 2, 2006", "2006-01-02"}

// Phase is one named sale window. A zero Start or End means the bound was
// not given.
type Phase struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Parse decodes a packed phase entry. Unparseable dates are treated as
// absent rather than as errors.
func Parse(raw string, loc *time.Location) (Phase, error) {
	if loc == nil {
		loc = time.UTC
	}
	parts := strings.Split(raw, ":")
	p := Phase{Name: strings.TrimSpace(parts[0])}
	if p.Name == "" {
		return Phase{}, ErrEmptyName
	}
	if len(parts) > 1 {
		p.Start = parseDate(parts[1], loc)
	}
	if len(parts) > 2 {
		p.End = parseDate(parts[2], loc)
	}
	return p, nil
}

func parseDate(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

// LastListed implements the catalog's original rule: the last non-empty
// entry of the sequence is current. It reports false for an event with no
// phases.
func LastListed(phases []string) (string, bool) {
	for i := len(phases) - 1; i >= 0; i-- {
		if p, err := Parse(phases[i], time.UTC); err == nil {
			return p.Name, true
		}
	}
	return "", false
}

// Policy selects how the current phase is chosen.
type Policy string

const (
	// PolicySchedule picks the phase whose date window contains now and
	// falls back to LastListed when no phase carries a date.
	PolicySchedule Policy = "schedule"
	// PolicyLast always uses LastListed.
	PolicyLast Policy = "last"
)

// Resolution is the outcome of resolving an event's phases at an instant.
type Resolution struct {
	Phased  bool   // the event declares at least one phase
	Current string // active phase; empty when nothing is on sale
}

// OnSale reports whether any inventory may be offered under r.
func (r Resolution) OnSale() bool { return !r.Phased || r.Current != "" }

// Resolver resolves phases under a policy in a fixed time zone.
type Resolver struct {
	Policy   Policy
	Location *time.Location
}

// NewResolver returns a Resolver; an unknown policy behaves as
// PolicySchedule and a nil location as UTC.
func NewResolver(policy Policy, loc *time.Location) Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if policy != PolicyLast {
		policy = PolicySchedule
	}
	return Resolver{Policy: policy, Location: loc}
}

// Resolve determines the current phase at now.
func (r Resolver) Resolve(phases []string, now time.Time) Resolution {
	parsed := make([]Phase, 0, len(phases))
	dated := false
	for _, raw := range phases {
		p, err := Parse(raw, r.Location)
		if err != nil {
			continue
		}
		dated = dated || !p.Start.IsZero() || !p.End.IsZero()
		parsed = append(parsed, p)
	}
	if len(parsed) == 0 {
		return Resolution{}
	}
	if r.Policy == PolicyLast || !dated {
		return Resolution{Phased: true, Current: parsed[len(parsed)-1].Name}
	}
	res := Resolution{Phased: true}
	for i, p := range parsed {
		start := p.Start
		if start.IsZero() && i > 0 {
			start = parsed[i-1].End
		}
		if (start.IsZero() || !now.Before(start)) && (p.End.IsZero() || now.Before(p.End)) {
			res.Current = p.Name
		}
	}
	return res
}

// Option is a category a buyer can choose right now.
type Option struct {
	CategoryName string `json:"category"`
	Phase        string `json:"phase,omitempty"`
	UnitPrice    int64  `json:"unit_price"`
	Available    int    `json:"available"`
}

// Offerable filters packed category rows down to those buyable under res.
// Malformed rows and rows with no remaining quantity are left out. An
// unphased event offers its legacy phase-less rows.
func Offerable(rows []string, res Resolution) []Option {
	opts := make([]Option, 0, len(rows))
	if !res.OnSale() {
		return opts
	}
	for _, raw := range rows {
		c, err := inventory.Decode(raw)
		if err != nil || c.Quantity <= 0 {
			continue
		}
		if c.Phase != res.Current {
			continue
		}
		opts = append(opts, Option{CategoryName: c.Name, Phase: c.Phase, UnitPrice: c.Price, Available: c.Quantity})
	}
	return opts
}

// Lookup returns the offerable option named category, if any.
func Lookup(opts []Option, category string) (Option, bool) {
	for _, o := range opts {
		if o.CategoryName == category {
			return o, true
		}
	}
	return Option{}, false
}
