// Package config loads the daemon configuration file.
//
// The file is YAML. The legacy JSON layout is valid YAML and loads unchanged:
//
//	{
//	  "WINDOWS_SETTINGS": {"Firefox": 1800, "Terminal": -1},
//	  "CHECK_INTERVAL": 1,
//	  "REAL_TERMINATE": 0
//	}
//
// Environment variables (WINMON_*) override file values; see LoadFromEnv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
)

// DefaultUID is the account the daemon drops to when started as root and USER is unset.
const DefaultUID = 1000

// Config holds all daemon configuration.
type Config struct {
	// Rules maps a window pattern to its focus budget in seconds (-1 = never terminate).
	Rules map[string]domain.Timeout `yaml:"WINDOWS_SETTINGS"`

	CheckInterval     Seconds `yaml:"CHECK_INTERVAL"`             // poll interval
	SweepInterval     Seconds `yaml:"RECORDS_TTL_CHECK_INTERVAL"` // eviction + reload cadence
	RecordsTTL        Seconds `yaml:"RECORDS_TTL"`                // unseen keys older than this are evicted
	QueryTimeout      Seconds `yaml:"QUERY_TIMEOUT"`              // bound on each display server query
	HeartbeatInterval Seconds `yaml:"HEARTBEAT_INTERVAL"`         // status file refresh

	Debug         Flag `yaml:"DEBUG"`
	RealTerminate Flag `yaml:"REAL_TERMINATE"` // off = dry run
	RecordHistory Flag `yaml:"RECORD_HISTORY"` // keep encrypted termination history

	LogFile string  `yaml:"LOG_FILE"` // empty = stderr
	User    UserRef `yaml:"USER"`     // account to drop to when run as root
	Display string  `yaml:"DISPLAY"`  // pin the X display instead of detecting it
	DataDir string  `yaml:"DATA_DIR"` // history database + key; empty = per exec mode
}

// Default returns a Config with the daemon defaults.
func Default() *Config {
	return &Config{
		CheckInterval:     1,
		SweepInterval:     300,
		RecordsTTL:        86400,
		QueryTimeout:      2,
		HeartbeatInterval: 30,
		Debug:             true,
		RealTerminate:     false,
		RecordHistory:     true,
		User:              UserRef{UID: DefaultUID, IsUID: true},
	}
}

// Load reads, parses and validates a config file, applying env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes config data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	intervals := []struct {
		name  string
		value Seconds
	}{
		{"CHECK_INTERVAL", c.CheckInterval},
		{"RECORDS_TTL_CHECK_INTERVAL", c.SweepInterval},
		{"RECORDS_TTL", c.RecordsTTL},
		{"QUERY_TIMEOUT", c.QueryTimeout},
		{"HEARTBEAT_INTERVAL", c.HeartbeatInterval},
	}
	for _, iv := range intervals {
		if iv.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", iv.name, float64(iv.value))
		}
	}

	for key, timeout := range c.Rules {
		if timeout < domain.Unlimited {
			return fmt.Errorf("rule %q: timeout must be -1 or >= 0, got %d", key, timeout)
		}
	}
	return nil
}

// DryRun reports whether terminations are only logged.
func (c *Config) DryRun() bool {
	return !bool(c.RealTerminate)
}

// Seconds is a duration written as a number of seconds.
type Seconds float64

// Duration converts to time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// Flag is a boolean that also accepts 0/1.
type Flag bool

// UnmarshalYAML accepts true/false and integers.
func (f *Flag) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if err := value.Decode(&b); err == nil {
		*f = Flag(b)
		return nil
	}
	var n int
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("line %d: expected boolean or 0/1, got %q", value.Line, value.Value)
	}
	*f = n != 0
	return nil
}

// UserRef names an account either by login name or by numeric uid.
type UserRef struct {
	Name  string
	UID   int
	IsUID bool
}

// UnmarshalYAML accepts a string (login name) or an integer (uid).
func (u *UserRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: USER must be a user name or uid", value.Line)
	}
	if value.Tag == "!!int" {
		uid, err := strconv.Atoi(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid uid %q", value.Line, value.Value)
		}
		*u = UserRef{UID: uid, IsUID: true}
		return nil
	}
	*u = UserRef{Name: value.Value}
	return nil
}

// ParseUserRef interprets s as a uid when numeric, else as a login name.
func ParseUserRef(s string) UserRef {
	if uid, err := strconv.Atoi(s); err == nil {
		return UserRef{UID: uid, IsUID: true}
	}
	return UserRef{Name: s}
}

func (u UserRef) String() string {
	if u.IsUID {
		return strconv.Itoa(u.UID)
	}
	return u.Name
}

// FileSource reads rules from a config file on every call.
type FileSource struct {
	path string
}

// NewFileSource creates a rule source backed by path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the config file path.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads the whole config.
func (s *FileSource) Load() (*Config, error) {
	return Load(s.path)
}

// LoadRules implements domain.RuleSource.
func (s *FileSource) LoadRules() (map[string]domain.Timeout, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	return cfg.Rules, nil
}

// Ensure FileSource implements domain.RuleSource.
var _ domain.RuleSource = (*FileSource)(nil)
