package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by Acquire when another instance holds the lock
var ErrAlreadyRunning = errors.New("daemon is already running")

// Daemon manages the PID file and the advisory lock that keeps a single
// tracker instance per user.
type Daemon struct {
	pidFile string
	lock    *flock.Flock
}

func New(pidFile string) *Daemon {
	return &Daemon{
		pidFile: pidFile,
		lock:    flock.New(pidFile + ".lock"),
	}
}

// Acquire takes the instance lock and writes the PID file. The lock is held
// until Release or process exit.
func (d *Daemon) Acquire() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", d.lock.Path(), err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	if err := d.WritePID(); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	return nil
}

// Release removes the PID file and drops the instance lock
func (d *Daemon) Release() error {
	return errors.Join(d.RemovePID(), d.lock.Unlock())
}

func (d *Daemon) WritePID() error {
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (d *Daemon) ReadPID() (int, error) {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}

	return pid, nil
}

func (d *Daemon) RemovePID() error {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the process named in the PID file is alive.
// A stale PID file is removed.
func (d *Daemon) IsRunning() (bool, int, error) {
	pid, err := d.ReadPID()
	if err != nil {
		return false, 0, err
	}

	if pid == 0 {
		return false, 0, nil
	}

	if !alive(pid) {
		_ = d.RemovePID()
		return false, 0, nil
	}

	return true, pid, nil
}

func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Stop sends SIGTERM and waits up to timeout for the daemon to finish its
// shutdown. The daemon removes its own PID file on exit.
func (d *Daemon) Stop(timeout time.Duration) error {
	running, pid, err := d.IsRunning()
	if err != nil {
		return fmt.Errorf("error checking daemon status: %w", err)
	}

	if !running {
		return fmt.Errorf("daemon is not running or PID file is stale")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = d.RemovePID()
			return fmt.Errorf("daemon process already terminated")
		}
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !alive(pid) {
			return d.RemovePID()
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("daemon (PID %d) did not exit within %v", pid, timeout)
}
