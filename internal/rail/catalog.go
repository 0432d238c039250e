package rail

// StationCatalog resolves between human station names and backend station
// codes. The code list itself is maintained outside the core (see the
// stations package); clients only depend on this lookup surface.
type StationCatalog interface {
	// Code returns the backend code for a station name.
	Code(name string) (string, bool)

	// Name returns the station name for a backend code, or the code
	// itself when unknown.
	Name(code string) string
}
