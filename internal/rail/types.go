package rail

import (
	"fmt"
	"time"
)

// KST is the civil time zone of both backends. Search defaults are
// computed in it regardless of where the client runs.
var KST = time.FixedZone("KST", 9*60*60)

// Session is the authentication state of one client. It is owned
// exclusively by that client and never shared across concurrent
// operations.
type Session struct {
	MembershipNumber string
	Name             string
	Email            string
	Phone            string
	Authenticated    bool
}

// Schedule is an immutable snapshot of one train run as returned by a
// search call. Concrete types live in the backend packages; the watcher
// only needs the seat-state view.
type Schedule interface {
	// TrainNumber identifies the run within its departure date.
	TrainNumber() string
	DepartureDate() string // YYYYMMDD
	DepartureTime() string // HHMMSS

	GeneralSeatAvailable() bool
	SpecialSeatAvailable() bool

	// StandbyCode is the backend's signed standby-queue state:
	// negative = standby not applicable, 0 = standby sold out,
	// positive = standby accepted.
	StandbyCode() int

	// Describe renders a one-line human-readable summary for notices.
	Describe() string
}

// StandbyOpen reports whether the run is accepting standby requests.
func StandbyOpen(sched Schedule) bool {
	return sched.StandbyCode() > 0
}

// Reservation is the server-side resource created by a reserve call,
// identified by its reservation number.
type Reservation interface {
	Number() string
	Price() int
	SeatCount() int

	// Waiting is true while the reservation is a standby entry with no
	// confirmed seat (the payment due date carries a sentinel value).
	Waiting() bool

	Describe() string
}

// Ticket is the proof of an issued or paid seat, derived read-only from a
// reservation after payment.
type Ticket interface {
	ReservationNumber() string
	Describe() string
}

// Card holds the payment details for Pay. Validation is a birth date for
// personal cards or a business registration number for corporate ones.
type Card struct {
	Number       string
	Password     string // first two digits only
	Validation   string
	Expiry       string // YYMM
	Installments int
}

// Type infers the card holder kind from the validation value's length:
// six digits read as a birth date (personal, "J"), ten as a business
// registration number (corporate, "S"). Other lengths are rejected rather
// than guessed; the length rule is inherited from the backend's app and
// has no documented behavior outside these two cases.
func (c Card) Type() (string, error) {
	switch len(c.Validation) {
	case 6:
		return "J", nil
	case 10:
		return "S", nil
	default:
		return "", fmt.Errorf("card validation value must be 6 or 10 digits, got %d", len(c.Validation))
	}
}

// Query describes one availability search. Station names are resolved to
// backend codes through the station catalog.
type Query struct {
	Departure string
	Arrival   string
	Date      string // YYYYMMDD, empty = today (KST)
	Time      string // HHMMSS, empty = now (KST)
	TimeLimit string // optional HHMMSS upper bound on departure

	Passengers []Passenger

	// Filter widening. The base predicate keeps runs with an available
	// seat; these OR in runs without seats and/or runs with an open
	// standby slot.
	IncludeSoldOut bool
	IncludeStandby bool
}

// DefaultedDateTime fills the query's date/time from the clock, in KST.
// A time earlier than "now" on today's date is floored to now so the
// backend does not reject the search.
func (q Query) DefaultedDateTime(now time.Time) (string, string) {
	now = now.In(KST)
	today := now.Format("20060102")
	date := q.Date
	if date == "" {
		date = today
	}
	t := q.Time
	if t == "" {
		t = "000000"
	}
	if date == today {
		if nowStr := now.Format("150405"); t < nowStr {
			t = nowStr
		}
	}
	return date, t
}
