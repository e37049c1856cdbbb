package proc

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_TrackGetRelease(t *testing.T) {
	r := NewRegistry(nil)

	assert.Nil(t, r.Get(RoleSoundPlayer))

	h := r.Track(RoleSoundPlayer, "aplay", nil)
	require.NotNil(t, h)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, RoleSoundPlayer, h.Role)
	assert.Equal(t, -1, h.Pid())
	assert.Same(t, h, r.Get(RoleSoundPlayer))

	r.Release(h)
	assert.Nil(t, r.Get(RoleSoundPlayer))
}

func TestRegistry_ReleaseIgnoresStaleHandle(t *testing.T) {
	r := NewRegistry(nil)

	old := r.Track(RoleStreamPlayer, "mpv", nil)
	replacement := r.Track(RoleStreamPlayer, "mpv", nil)

	// The old worker reaping late must not drop the replacement.
	r.Release(old)
	assert.Same(t, replacement, r.Get(RoleStreamPlayer))

	r.Release(replacement)
	assert.Nil(t, r.Get(RoleStreamPlayer))
}

func TestRegistry_RolesAreIndependent(t *testing.T) {
	r := NewRegistry(nil)

	sound := r.Track(RoleSoundPlayer, "aplay", nil)
	stream := r.Track(RoleStreamPlayer, "mpv", nil)

	r.Terminate(RoleSoundPlayer)
	assert.Nil(t, r.Get(RoleSoundPlayer))
	assert.Same(t, stream, r.Get(RoleStreamPlayer))
	_ = sound
}

func TestRegistry_TerminateKillsTrackedProcess(t *testing.T) {
	r := NewRegistry(nil)

	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())

	h := r.Track(RoleSoundPlayer, "sleep", cmd)
	require.Greater(t, h.Pid(), 0)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	r.Terminate(RoleSoundPlayer)
	assert.Nil(t, r.Get(RoleSoundPlayer))

	select {
	case err := <-done:
		assert.Error(t, err) // killed by signal
	case <-time.After(5 * time.Second):
		t.Fatal("terminated process did not exit")
	}
}

func TestRegistry_SweepSkipsTrackedPids(t *testing.T) {
	r := NewRegistry(nil)

	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	}()

	r.Track(RoleSoundPlayer, "sleep", cmd)

	// The tracked sleep must survive a sweep for its own binary name.
	r.Sweep("sleep")

	assert.NoError(t, cmd.Process.Signal(syscall.Signal(0)))
}
