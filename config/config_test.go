package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load("does-not-exist.env")

	assert.Equal(t, "engine.db", cfg.SavePath)
	assert.Equal(t, 0, cfg.MaxIterations)
	assert.Equal(t, time.Saturday, cfg.LeagueWeekday)
	assert.Equal(t, time.Wednesday, cfg.CupWeekday)
	assert.Equal(t, time.June, cfg.PreseasonMonth)
	assert.Equal(t, 1, cfg.PreseasonDay)
	assert.NotEmpty(t, cfg.VenuePool)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENGINE_SAVE_PATH", "career.db")
	t.Setenv("ENGINE_MAX_ITERATIONS", "365")
	t.Setenv("ENGINE_LEAGUE_WEEKDAY", "0")
	t.Setenv("ENGINE_VENUE_POOL", "de_dust2, de_ancient")

	cfg := Load("does-not-exist.env")

	assert.Equal(t, "career.db", cfg.SavePath)
	assert.Equal(t, 365, cfg.MaxIterations)
	assert.Equal(t, time.Sunday, cfg.LeagueWeekday)
	assert.Equal(t, []string{"de_dust2", "de_ancient"}, cfg.VenuePool)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("ENGINE_MAX_ITERATIONS", "soon")
	cfg := Load("does-not-exist.env")
	assert.Equal(t, 0, cfg.MaxIterations)
}
