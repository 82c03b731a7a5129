package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPAddr    string
	Store       string
	DatabaseURL string
	SeedFile    string

	TurnDuration  time.Duration
	RosterCap     int
	QuorumPercent int
	StoreTimeout  time.Duration

	ReapInterval time.Duration
	StaleAfter   time.Duration

	ReminderInterval time.Duration
	ReminderWindow   time.Duration

	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration

	LogLevel  string
	LogFormat string
}

func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		Store:            StorePostgres,
		TurnDuration:     120 * time.Second,
		RosterCap:        15,
		QuorumPercent:    60,
		StoreTimeout:     5 * time.Second,
		ReapInterval:     5 * time.Minute,
		StaleAfter:       5 * time.Minute,
		ReminderInterval: 15 * time.Minute,
		ReminderWindow:   time.Hour,
		WSReadTimeout:    2 * time.Minute,
		WSWriteTimeout:   5 * time.Second,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load reads .env when present, then overlays the environment on Default.
// Values that do not parse are errors.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup without touching .env.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.str("DRAFT_HTTP_ADDR", &c.HTTPAddr)
	p.str("DRAFT_STORE", &c.Store)
	p.str("DATABASE_URL", &c.DatabaseURL)
	p.str("DRAFT_SEED_FILE", &c.SeedFile)
	p.duration("DRAFT_TURN_DURATION", &c.TurnDuration)
	p.integer("DRAFT_ROSTER_CAP", &c.RosterCap)
	p.integer("DRAFT_QUORUM_PERCENT", &c.QuorumPercent)
	p.duration("DRAFT_STORE_TIMEOUT", &c.StoreTimeout)
	p.duration("DRAFT_REAP_INTERVAL", &c.ReapInterval)
	p.duration("DRAFT_STALE_AFTER", &c.StaleAfter)
	p.duration("DRAFT_REMINDER_INTERVAL", &c.ReminderInterval)
	p.duration("DRAFT_REMINDER_WINDOW", &c.ReminderWindow)
	p.duration("DRAFT_WS_READ_TIMEOUT", &c.WSReadTimeout)
	p.duration("DRAFT_WS_WRITE_TIMEOUT", &c.WSWriteTimeout)
	p.str("LOG_LEVEL", &c.LogLevel)
	p.str("LOG_FORMAT", &c.LogFormat)

	if p.err != nil {
		return Config{}, p.err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("DRAFT_HTTP_ADDR cannot be empty")
	}
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreMemory:
		if c.SeedFile == "" {
			return errors.New("DRAFT_SEED_FILE is required for the memory store")
		}
	default:
		return fmt.Errorf("DRAFT_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	positive := map[string]time.Duration{
		"DRAFT_TURN_DURATION":     c.TurnDuration,
		"DRAFT_STORE_TIMEOUT":     c.StoreTimeout,
		"DRAFT_REAP_INTERVAL":     c.ReapInterval,
		"DRAFT_STALE_AFTER":       c.StaleAfter,
		"DRAFT_REMINDER_INTERVAL": c.ReminderInterval,
		"DRAFT_REMINDER_WINDOW":   c.ReminderWindow,
		"DRAFT_WS_READ_TIMEOUT":   c.WSReadTimeout,
		"DRAFT_WS_WRITE_TIMEOUT":  c.WSWriteTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.RosterCap <= 0 {
		return errors.New("DRAFT_ROSTER_CAP must be positive")
	}
	if c.QuorumPercent < 1 || c.QuorumPercent > 100 {
		return errors.New("DRAFT_QUORUM_PERCENT must be between 1 and 100")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(name string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) str(name string, dst *string) {
	if v, ok := p.get(name); ok {
		*dst = v
	}
}

func (p *parser) duration(name string, dst *time.Duration) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = fmt.Errorf("%s: invalid duration %q", name, v)
		return
	}
	*dst = d
}

func (p *parser) integer(name string, dst *int) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("%s: invalid integer %q", name, v)
		return
	}
	*dst = n
}
