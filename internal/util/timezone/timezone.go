package timezone

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

var currentLocation *time.Location

// Initialize sets the process timezone from the TZ environment variable.
// Should be called once at startup; falls back to UTC.
func Initialize() {
	tzName := "UTC"
	if envTZ := os.Getenv("TZ"); envTZ != "" {
		tzName = envTZ
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Warnf("Failed to load timezone %s from environment: %v. Falling back to UTC.", tzName, err)
		currentLocation = time.UTC
		return
	}

	log.Infof("Timezone initialized to %s", tzName)
	currentLocation = loc
}

// Now returns the current time in the configured timezone.
func Now() time.Time {
	if currentLocation == nil {
		Initialize()
	}
	return time.Now().In(currentLocation)
}

// StartOfDay returns midnight of the given time's calendar day
// in the configured timezone.
func StartOfDay(t time.Time) time.Time {
	if currentLocation == nil {
		Initialize()
	}
	local := t.In(currentLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, currentLocation)
}

// Format formats a time in the configured timezone.
func Format(t time.Time, layout string) string {
	if currentLocation == nil {
		Initialize()
	}
	return t.In(currentLocation).Format(layout)
}
