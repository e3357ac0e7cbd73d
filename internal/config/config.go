package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"
)

// Config holds the service configuration. Values come from the environment
// at boot (a .env file is loaded first when present) and can be overridden
// at runtime through the config endpoint.
type Config struct {
	Port            string
	SignalEmail     string
	SignalPassword  string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseTable   string
	Headless        bool
	ChromeBin       string
	DBPath          string
	CachePath       string
	OperatorKeyHash string
}

// Load reads the configuration from the environment with defaults.
func Load() *Config {
	return &Config{
		Port:            envOr("PORT", "8080"),
		SignalEmail:     os.Getenv("SIGNAL_EMAIL"),
		SignalPassword:  os.Getenv("SIGNAL_PASSWORD"),
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseKey:     os.Getenv("SUPABASE_API_KEY"),
		SupabaseTable:   envOr("SUPABASE_TABLE", "inventory"),
		Headless:        envBool("HEADLESS", true),
		ChromeBin:       os.Getenv("CHROME_BIN"),
		DBPath:          envOr("DB_PATH", "./data/appraiser.db"),
		CachePath:       envOr("CACHE_PATH", "./data/inventory_cache.json"),
		OperatorKeyHash: os.Getenv("OPERATOR_KEY_HASH"),
	}
}

// Validate checks boot-time coherence. Missing appraisal credentials are not
// a boot failure: the service starts unconfigured and batches fail with a
// logged error until credentials arrive via env or the config endpoint.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}
	if c.SupabaseURL != "" {
		parsed, err := url.Parse(c.SupabaseURL)
		if err != nil {
			return fmt.Errorf("invalid supabase URL: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("supabase URL must include a host")
		}
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	return nil
}

// ValidateForBatch checks the subset a batch job cannot run without.
func (c *Config) ValidateForBatch() error {
	if c.SignalEmail == "" || c.SignalPassword == "" {
		return fmt.Errorf("appraisal site credentials are not configured")
	}
	return nil
}

// ValidateForStore checks the subset the inventory/result store needs.
func (c *Config) ValidateForStore() error {
	if c.SupabaseURL == "" || c.SupabaseKey == "" {
		return fmt.Errorf("supabase credentials are not configured")
	}
	return nil
}

// Overrides is the partial-update body of the config endpoint. Nil fields
// leave the current value untouched.
type Overrides struct {
	SignalEmail    *string `json:"signal_email"`
	SignalPassword *string `json:"signal_password"`
	SupabaseURL    *string `json:"supabase_url"`
	SupabaseKey    *string `json:"supabase_key"`
	SupabaseTable  *string `json:"supabase_table"`
	Headless       *bool   `json:"headless"`
}

// Public is the API-safe view of the configuration: secrets are reduced to
// presence flags.
type Public struct {
	SignalEmail    string `json:"signal_email"`
	PasswordSet    bool   `json:"signal_password_set"`
	SupabaseURL    string `json:"supabase_url"`
	SupabaseKeySet bool   `json:"supabase_key_set"`
	SupabaseTable  string `json:"supabase_table"`
	Headless       bool   `json:"headless"`
}

// Manager guards the live configuration for concurrent readers and the
// config endpoint's writer. Batch jobs copy a Snapshot at start, so runtime
// overrides never change a batch that is already running.
type Manager struct {
	mu  sync.RWMutex
	cfg Config
}

// NewManager wraps an initial configuration.
func NewManager(cfg *Config) *Manager {
	return &Manager{cfg: *cfg}
}

// Snapshot returns a copy of the current configuration.
func (m *Manager) Snapshot() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Apply merges non-nil override fields into the live configuration and
// returns the result.
func (m *Manager) Apply(o Overrides) Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.SignalEmail != nil {
		m.cfg.SignalEmail = *o.SignalEmail
	}
	if o.SignalPassword != nil {
		m.cfg.SignalPassword = *o.SignalPassword
	}
	if o.SupabaseURL != nil {
		m.cfg.SupabaseURL = *o.SupabaseURL
	}
	if o.SupabaseKey != nil {
		m.cfg.SupabaseKey = *o.SupabaseKey
	}
	if o.SupabaseTable != nil {
		m.cfg.SupabaseTable = *o.SupabaseTable
	}
	if o.Headless != nil {
		m.cfg.Headless = *o.Headless
	}
	return m.cfg
}

// Public returns the API-safe view of the current configuration.
func (m *Manager) Public() Public {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Public{
		SignalEmail:    m.cfg.SignalEmail,
		PasswordSet:    m.cfg.SignalPassword != "",
		SupabaseURL:    m.cfg.SupabaseURL,
		SupabaseKeySet: m.cfg.SupabaseKey != "",
		SupabaseTable:  m.cfg.SupabaseTable,
		Headless:       m.cfg.Headless,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
