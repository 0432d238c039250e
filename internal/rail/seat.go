package rail

// SeatPreference is the operator policy for choosing between the general
// and special seating classes.
type SeatPreference int

const (
	GeneralFirst SeatPreference = iota + 1
	GeneralOnly
	SpecialFirst
	SpecialOnly
)

var preferenceNames = map[SeatPreference]string{
	GeneralFirst: "general-first",
	GeneralOnly:  "general-only",
	SpecialFirst: "special-first",
	SpecialOnly:  "special-only",
}

func (p SeatPreference) String() string {
	if name, ok := preferenceNames[p]; ok {
		return name
	}
	return "unknown"
}

// ParseSeatPreference maps a config value to a preference; unknown values
// fall back to general-first.
func ParseSeatPreference(s string) SeatPreference {
	for pref, name := range preferenceNames {
		if name == s {
			return pref
		}
	}
	return GeneralFirst
}

// SeatAvailable reports whether sched currently satisfies pref:
// the "-first" preferences accept either class, the "-only" preferences
// accept exactly one.
func SeatAvailable(sched Schedule, pref SeatPreference) bool {
	switch pref {
	case GeneralOnly:
		return sched.GeneralSeatAvailable()
	case SpecialOnly:
		return sched.SpecialSeatAvailable()
	default:
		return sched.GeneralSeatAvailable() || sched.SpecialSeatAvailable()
	}
}

// UseSpecialClass resolves pref against the schedule's live seat state to
// decide which class the write should request. With standby set the seat
// flags are meaningless (nothing is available), so only the preference's
// leaning matters.
func UseSpecialClass(sched Schedule, pref SeatPreference, standby bool) bool {
	if standby {
		return pref == SpecialOnly || pref == SpecialFirst
	}
	switch pref {
	case GeneralOnly:
		return false
	case SpecialOnly:
		return true
	case GeneralFirst:
		return !sched.GeneralSeatAvailable()
	case SpecialFirst:
		return sched.SpecialSeatAvailable()
	}
	return false
}

// NarrowForStandby converts the "-first" preferences to their "-only"
// counterparts; a standby request has no second class to fall back to.
func NarrowForStandby(pref SeatPreference) SeatPreference {
	switch pref {
	case GeneralFirst:
		return GeneralOnly
	case SpecialFirst:
		return SpecialOnly
	}
	return pref
}
