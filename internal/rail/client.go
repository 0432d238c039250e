// Package rail defines the entities, error taxonomy and capability
// interface shared by the concrete backend clients. The watcher depends on
// this package only; everything backend-specific stays behind Client.
package rail

import "context"

// Client is the capability surface of one rail-ticketing backend. A Client
// owns one authenticated session and one admission-token cache; it is not
// safe for concurrent use, but independent Clients (different backends or
// accounts) may run in parallel.
type Client interface {
	// Login authenticates with the credentials the client was constructed
	// with and returns the resulting session.
	Login(ctx context.Context) (*Session, error)

	// Logout invalidates the session. Idempotent; a no-op when anonymous.
	Logout(ctx context.Context) error

	// Search returns schedules matching the query, filtered per the
	// query's widening flags. ErrNoResults when nothing survives the
	// filter.
	Search(ctx context.Context, q Query) ([]Schedule, error)

	// Reserve books seats on the given schedule. The schedule must have
	// been produced by this client's Search.
	Reserve(ctx context.Context, sched Schedule, passengers []Passenger, pref SeatPreference) (Reservation, error)

	// ReserveStandby joins the waitlist for the given schedule.
	ReserveStandby(ctx context.Context, sched Schedule, passengers []Passenger, pref SeatPreference) (Reservation, error)

	// Reservations lists the account's current reservations.
	Reservations(ctx context.Context) ([]Reservation, error)

	// Cancel destroys an unpaid reservation.
	Cancel(ctx context.Context, r Reservation) error

	// Pay settles a reservation with a credit card.
	Pay(ctx context.Context, r Reservation, card Card) error

	// Refund returns an issued ticket.
	Refund(ctx context.Context, t Ticket) error

	// ClearAdmissionCache drops the cached admission token so the next
	// write performs a fresh queue handshake.
	ClearAdmissionCache()
}
