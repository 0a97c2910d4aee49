package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// StartDaemon spawns `winmon run` for configPath, detached from the parent
// process, and returns its PID.
func StartDaemon(configPath, envFile string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartDaemonWithPath(executable, configPath, envFile)
}

// StartDaemonWithPath spawns the daemon from a specific binary.
func StartDaemonWithPath(binaryPath, configPath, envFile string) (int, error) {
	cmd := exec.Command(binaryPath, DaemonArgs(configPath, envFile)...)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Not waited on; the child outlives us.
	_ = cmd.Process.Release()
	return pid, nil
}

// DaemonArgs builds the command line of the detached daemon.
func DaemonArgs(configPath, envFile string) []string {
	args := []string{"run", "--config", configPath}
	if envFile != "" {
		args = append(args, "--env-file", envFile)
	}
	return args
}
