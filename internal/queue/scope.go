package queue

import (
	"fmt"
	"strings"
	"time"
)

type ScopeKind string

const (
	ScopeToday ScopeKind = "today"
	ScopeAll   ScopeKind = "all"
)

// Scope selects which ledger rows take part in listing, numbering and
// advancing. One value is shared by all three operations.
type Scope struct {
	Kind     ScopeKind
	Location *time.Location
}

func ParseScope(kind string, loc *time.Location) (Scope, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch ScopeKind(strings.ToLower(strings.TrimSpace(kind))) {
	case ScopeToday, "":
		return Scope{Kind: ScopeToday, Location: loc}, nil
	case ScopeAll:
		return Scope{Kind: ScopeAll, Location: loc}, nil
	default:
		return Scope{}, fmt.Errorf("unknown queue scope %q", kind)
	}
}

func (s Scope) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Key names the numbering run that now falls in: the calendar date for
// ScopeToday and a constant for ScopeAll.
func (s Scope) Key(now time.Time) string {
	if s.Kind == ScopeAll {
		return string(ScopeAll)
	}
	return now.In(s.location()).Format(time.DateOnly)
}

// Contains reports whether a row stamped issuedAt belongs to the run that
// now falls in.
func (s Scope) Contains(issuedAt, now time.Time) bool {
	if s.Kind == ScopeAll {
		return true
	}
	return s.Key(issuedAt) == s.Key(now)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"1/2/2006, 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// displaySpaces normalizes the no-break spaces locale formatting puts
// before AM/PM.
var displaySpaces = strings.NewReplacer("\u202f", " ", "\u00a0", " ")

// ParseTimestamp accepts RFC 3339 instants as well as the display forms a
// spreadsheet produces. Zone-less values are read in the scope's location.
func (s Scope) ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(displaySpaces.Replace(raw))
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s Scope) FormatTimestamp(t time.Time) string {
	return t.In(s.location()).Format(time.RFC3339)
}
