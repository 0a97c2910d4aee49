package infra

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
)

const statusDir = "/var/tmp"

// StatusFile implements domain.StatusRegistry using a JSON file.
// The file name is derived from the hostname and uid so several users on one
// machine do not collide.
type StatusFile struct {
	path string
}

// NewStatusFile creates the status file for the current user.
func NewStatusFile() *StatusFile {
	hostname, _ := os.Hostname()
	hash := md5.Sum([]byte(fmt.Sprintf("winmon-status-%s-%d", hostname, os.Getuid())))
	return &StatusFile{
		path: filepath.Join(statusDir, ".winmon_"+hex.EncodeToString(hash[:])[:8]+".json"),
	}
}

// NewStatusFileWithPath creates a status file at a specific path (for testing).
func NewStatusFileWithPath(path string) *StatusFile {
	return &StatusFile{path: path}
}

// GetPath returns the status file path.
func (s *StatusFile) GetPath() string {
	return s.path
}

// Write replaces the stored status atomically under an exclusive lock.
func (s *StatusFile) Write(status domain.DaemonStatus) error {
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Read returns the stored status, or nil when the file does not exist.
func (s *StatusFile) Read() (*domain.DaemonStatus, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var status domain.DaemonStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("corrupt status file %s: %w", s.path, err)
	}
	return &status, nil
}

// Clear removes the status file and its lock.
func (s *StatusFile) Clear() error {
	_ = os.Remove(s.path + ".lock")
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Ensure StatusFile implements domain.StatusRegistry.
var _ domain.StatusRegistry = (*StatusFile)(nil)
