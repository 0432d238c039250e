package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/hanrail/hanrail/internal/rail"
)

// Config holds all configuration for the booking daemon
type Config struct {
	// Backend selection: "srt" or "korail"
	Backend string

	// Local state
	DatabasePath string

	// Credentials; when empty the stored ones are used
	LoginID  string
	Password string

	// Journey
	Departure string
	Arrival   string
	Date      string // YYYYMMDD, empty = today
	Time      string // HHMMSS, empty = now
	TimeLimit string // HHMMSS upper bound on departure, empty = none

	// Trains to watch, by train number; empty watches every result
	Trains []string

	// Passenger counts
	Adults         int
	Children       int
	Toddlers       int
	Seniors        int
	Disability1To3 int
	Disability4To6 int

	// Booking behavior
	SeatPreference string // general-first/general-only/special-first/special-only
	IncludeSoldOut bool
	IncludeStandby bool
	WindowSeat     string // "", "yes" or "no"

	// Notice delivery
	TelegramToken  string
	TelegramChatID string
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		Backend:      getEnv("HANRAIL_BACKEND", "srt"),
		DatabasePath: getEnv("HANRAIL_DATABASE", "hanrail.db"),

		LoginID:  getEnv("HANRAIL_ID", ""),
		Password: getEnv("HANRAIL_PASSWORD", ""),

		Departure: getEnv("HANRAIL_DEPARTURE", "수서"),
		Arrival:   getEnv("HANRAIL_ARRIVAL", "부산"),
		Date:      getEnv("HANRAIL_DATE", ""),
		Time:      getEnv("HANRAIL_TIME", ""),
		TimeLimit: getEnv("HANRAIL_TIME_LIMIT", ""),

		Trains: splitList(getEnv("HANRAIL_TRAINS", "")),

		Adults:         getEnvInt("HANRAIL_ADULTS", 1),
		Children:       getEnvInt("HANRAIL_CHILDREN", 0),
		Toddlers:       getEnvInt("HANRAIL_TODDLERS", 0),
		Seniors:        getEnvInt("HANRAIL_SENIORS", 0),
		Disability1To3: getEnvInt("HANRAIL_DISABILITY_1TO3", 0),
		Disability4To6: getEnvInt("HANRAIL_DISABILITY_4TO6", 0),

		SeatPreference: getEnv("HANRAIL_SEAT_PREFERENCE", "general-first"),
		IncludeSoldOut: getEnvBool("HANRAIL_INCLUDE_SOLD_OUT", true),
		IncludeStandby: getEnvBool("HANRAIL_INCLUDE_STANDBY", false),
		WindowSeat:     getEnv("HANRAIL_WINDOW_SEAT", ""),

		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// Passengers assembles the configured line items. Zero-count categories
// are dropped by the aggregator.
func (c *Config) Passengers() []rail.Passenger {
	return []rail.Passenger{
		{Category: rail.Adult, Count: c.Adults},
		{Category: rail.Child, Count: c.Children},
		{Category: rail.Toddler, Count: c.Toddlers},
		{Category: rail.Senior, Count: c.Seniors},
		{Category: rail.Disability1To3, Count: c.Disability1To3},
		{Category: rail.Disability4To6, Count: c.Disability4To6},
	}
}

// Query builds the search query from the journey settings.
func (c *Config) Query() rail.Query {
	return rail.Query{
		Departure:      c.Departure,
		Arrival:        c.Arrival,
		Date:           c.Date,
		Time:           c.Time,
		TimeLimit:      c.TimeLimit,
		Passengers:     c.Passengers(),
		IncludeSoldOut: c.IncludeSoldOut,
		IncludeStandby: c.IncludeStandby,
	}
}

// WindowPref translates the window-seat setting into the three-valued
// preference the SRT client takes. nil = no preference.
func (c *Config) WindowPref() *bool {
	switch c.WindowSeat {
	case "yes":
		v := true
		return &v
	case "no":
		v := false
		return &v
	}
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
