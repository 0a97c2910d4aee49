package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables that are already set win.
func LoadEnvFile(path string) error {
	return godotenv.Load(path)
}

// LoadFromEnv loads configuration from environment variables
// Environment variables override file values
func LoadFromEnv(cfg *Config) {
	envSeconds("WINMON_CHECK_INTERVAL", &cfg.CheckInterval)
	envSeconds("WINMON_RECORDS_TTL_CHECK_INTERVAL", &cfg.SweepInterval)
	envSeconds("WINMON_RECORDS_TTL", &cfg.RecordsTTL)
	envSeconds("WINMON_QUERY_TIMEOUT", &cfg.QueryTimeout)
	envSeconds("WINMON_HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval)

	envFlag("WINMON_DEBUG", &cfg.Debug)
	envFlag("WINMON_REAL_TERMINATE", &cfg.RealTerminate)
	envFlag("WINMON_RECORD_HISTORY", &cfg.RecordHistory)

	if logFile := os.Getenv("WINMON_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}
	if user := os.Getenv("WINMON_USER"); user != "" {
		cfg.User = ParseUserRef(user)
	}
	if display := os.Getenv("WINMON_DISPLAY"); display != "" {
		cfg.Display = display
	}
	if dataDir := os.Getenv("WINMON_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}
}

func envSeconds(name string, dst *Seconds) {
	if v := os.Getenv(name); v != "" {
		if seconds, err := strconv.ParseFloat(v, 64); err == nil && seconds > 0 {
			*dst = Seconds(seconds)
		}
	}
}

func envFlag(name string, dst *Flag) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = Flag(b)
		}
	}
}
