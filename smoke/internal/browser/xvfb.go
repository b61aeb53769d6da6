package browser

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// xvfb is a virtual display for headful mode.
type xvfb struct {
	display string
	cmd     *exec.Cmd
	logger  *slog.Logger
}

// startXvfb launches Xvfb on display.
func startXvfb(display string, logger *slog.Logger) (*xvfb, error) {
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start xvfb: %w", err)
	}

	// Give Xvfb a moment to initialise.
	time.Sleep(500 * time.Millisecond)

	logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return &xvfb{display: display, cmd: cmd, logger: logger}, nil
}

// stop kills the Xvfb process. Safe on a nil receiver.
func (x *xvfb) stop() {
	if x == nil || x.cmd == nil {
		return
	}
	if x.cmd.Process != nil {
		x.cmd.Process.Kill()
		x.cmd.Wait()
	}
	x.logger.Info("browser: xvfb stopped")
	x.cmd = nil
}
