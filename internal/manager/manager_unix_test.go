//go:build !windows

package manager

import (
	"os/exec"
	"syscall"
	"testing"

	"github.com/loykin/prokill/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTerminateMapsErrno(t *testing.T) {
	m, _, sig := newTestManager()
	sig.errs[1234] = osErr(1234, process.SignalTerminate, "kill", unix.ESRCH)
	sig.errs[2048] = osErr(2048, process.SignalKill, "kill", unix.EPERM)

	err := m.Terminate(1234, false)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.ErrorIs(t, err, ErrNotFound)

	err = m.Terminate(2048, true)
	assert.Equal(t, KindPermissionDenied, KindOf(err))
	assert.Equal(t, "Permission denied", err.Error())
}

func TestTerminateRealMissingPID(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	pid := uint32(cmd.Process.Pid)

	m := NewSystem(nil)
	err := m.Terminate(pid, false)
	require.Error(t, err)
	k := KindOf(err)
	// the pid may have been reused by an unrelated process owned by someone else
	assert.Contains(t, []Kind{KindNotFound, KindPermissionDenied}, k)
}

func TestTerminateRealChild(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := uint32(cmd.Process.Pid)

	m := NewSystem(nil)
	rec, ok := m.Find(pid)
	require.True(t, ok)
	require.NoError(t, m.CanKill(rec))
	require.NoError(t, m.Terminate(pid, false))

	err := cmd.Wait()
	require.Error(t, err)
	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.True(t, ws.Signaled())
	assert.Equal(t, syscall.SIGTERM, ws.Signal())
}

func TestTerminateInvalidPID(t *testing.T) {
	m := NewSystem(nil)
	err := m.Terminate(0, true)
	assert.Equal(t, KindSignalFailed, KindOf(err))
}
