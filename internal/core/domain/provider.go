package domain

import (
	"fmt"
	"time"
)

// Score is a provider's latency ranking, sourced from the discovery
// collaborator and stored in fixed-point form so ordering never has to
// reason about NaN or float rounding.
type Score struct {
	NameLookupNanos int64
	ConnectNanos    int64
}

// NewScore stores the name-lookup and connect durations the discovery
// collaborator reports as integer nanoseconds, the fixed-point form Provider
// ordering compares.
func NewScore(nameLookup, connect time.Duration) Score {
	return Score{
		NameLookupNanos: nameLookup.Nanoseconds(),
		ConnectNanos:    connect.Nanoseconds(),
	}
}

// Less orders by connect-duration ascending, ties broken by name-resolution
// duration ascending.
func (s Score) Less(other Score) bool {
	if s.ConnectNanos != other.ConnectNanos {
		return s.ConnectNanos < other.ConnectNanos
	}
	return s.NameLookupNanos < other.NameLookupNanos
}

// Provider is an upstream mirror endpoint. Immutable once constructed by the
// discovery collaborator; the registry replaces the whole snapshot rather
// than mutating a Provider in place.
type Provider struct {
	Name    string
	BaseURI string
	Score   Score
	Country string
}

func (p Provider) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.BaseURI)
}
