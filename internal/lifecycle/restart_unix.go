//go:build !windows

package lifecycle

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// restartProcess restarts the controller process: try systemd, then
// launchd, then fall back to re-exec'ing the current binary in place.
func restartProcess() error {
	if err := restartSystemd(); err == nil {
		return nil
	}
	if err := restartLaunchd(); err == nil {
		return nil
	}
	return restartExec()
}

func restartSystemd() error {
	cmd := exec.Command("systemctl", "restart", serviceName)
	return cmd.Run()
}

func restartLaunchd() error {
	cmd := exec.Command("launchctl", "kickstart", "-k", "system/"+launchdLabel)
	return cmd.Run()
}

func restartExec() error {
	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	binary, err = filepath.EvalSymlinks(binary)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}

	args := []string{binary, "run"}
	env := os.Environ()
	return syscall.Exec(binary, args, env)
}
