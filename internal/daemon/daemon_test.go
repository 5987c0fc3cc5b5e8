package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daypulse.pid")
	d := New(pidFile)

	require.NoError(t, d.Acquire())

	pid, err := d.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, got, err := d.IsRunning()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), got)

	// A second handle on the same files cannot take the lock.
	other := New(pidFile)
	assert.ErrorIs(t, other.Acquire(), ErrAlreadyRunning)

	require.NoError(t, d.Release())
	_, err = os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, other.Acquire())
	require.NoError(t, other.Release())
}

func TestStalePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daypulse.pid")
	// PIDs are capped well below this on Linux.
	require.NoError(t, os.WriteFile(pidFile, []byte("99999999"), 0644))

	d := New(pidFile)
	running, _, err := d.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)

	_, err = os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err), "stale PID file should be removed")
}

func TestReadPIDMissingAndInvalid(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daypulse.pid")
	d := New(pidFile)

	pid, err := d.ReadPID()
	require.NoError(t, err)
	assert.Zero(t, pid)

	require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0644))
	_, err = d.ReadPID()
	assert.Error(t, err)
}

func TestStopNotRunning(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "daypulse.pid"))
	assert.Error(t, d.Stop(0))
}
