package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as the desktop user
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root and drops to the configured user
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode       ExecMode
	ConfigPath string // Default config file
	DataDir    string // Where the termination history and its key live
	IsRoot     bool   // Whether running as root
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:       ExecModeSystem,
			ConfigPath: "/etc/winmon/winmon.yaml",
			DataDir:    "/var/lib/winmon",
			IsRoot:     true,
		}
	}
	return GetUserModeConfig()
}

// GetUserModeConfig returns user mode config regardless of current euid.
// Under sudo the invoking user's home directory is used.
func GetUserModeConfig() *ExecModeConfig {
	home := GetRealUserHome()
	return &ExecModeConfig{
		Mode:       ExecModeUser,
		ConfigPath: filepath.Join(home, ".config", "winmon", "winmon.yaml"),
		DataDir:    filepath.Join(home, ".local", "share", "winmon"),
		IsRoot:     os.Geteuid() == 0,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root, drops privileges)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
