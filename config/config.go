// Package config loads engine settings from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the engine and the host CLI read.
type Config struct {
	// SavePath is the bbolt save file backing the store.
	SavePath string

	// MaxIterations caps a single scheduler run. Zero runs until halted.
	MaxIterations int

	// VenuePool is assigned to matches cyclically after a shuffle.
	VenuePool []string

	// LeagueWeekday and CupWeekday pick the day of the week matchdays of
	// each competition kind land on.
	LeagueWeekday time.Weekday
	CupWeekday    time.Weekday

	// PreseasonMonth/PreseasonDay anchor the start of every season.
	PreseasonMonth time.Month
	PreseasonDay   int

	// EmailLeadDays is how many days before the season start the reminder
	// email goes out.
	EmailLeadDays int
}

// Load reads the optional .env files then the environment. Missing keys fall
// back to defaults; a missing .env file is not an error.
func Load(files ...string) *Config {
	_ = godotenv.Load(files...)

	return &Config{
		SavePath:       getEnv("ENGINE_SAVE_PATH", "engine.db"),
		MaxIterations:  getEnvInt("ENGINE_MAX_ITERATIONS", 0),
		VenuePool:      getEnvList("ENGINE_VENUE_POOL", "de_dust2,de_inferno,de_mirage,de_nuke,de_overpass,de_train,de_tuscan"),
		LeagueWeekday:  time.Weekday(getEnvInt("ENGINE_LEAGUE_WEEKDAY", int(time.Saturday))),
		CupWeekday:     time.Weekday(getEnvInt("ENGINE_CUP_WEEKDAY", int(time.Wednesday))),
		PreseasonMonth: time.Month(getEnvInt("ENGINE_PRESEASON_MONTH", int(time.June))),
		PreseasonDay:   getEnvInt("ENGINE_PRESEASON_DAY", 1),
		EmailLeadDays:  getEnvInt("ENGINE_EMAIL_LEAD_DAYS", 7),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
