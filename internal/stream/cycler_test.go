package stream

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CWE3D/lister-sound-system/internal/config"
	"github.com/CWE3D/lister-sound-system/internal/proc"
)

// newTestCycler builds a Cycler around a uniquely named player script so
// orphan sweeps cannot touch unrelated processes. The spawner is replaced
// with plain long-running sleeps.
func newTestCycler(t *testing.T, urls []string) *Cycler {
	t.Helper()
	player := filepath.Join(t.TempDir(), "lister-test-streamer")
	require.NoError(t, os.WriteFile(player, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755))

	cfg := config.StreamConfig{
		Player:        player,
		URLs:          urls,
		SwitchTimeout: config.Duration(60 * time.Second),
	}
	c := New(cfg, proc.NewRegistry(nil), nil)
	c.SetSpawner(func(string) *exec.Cmd {
		return exec.Command("sleep", "30")
	})
	return c
}

func TestToggle_FirstToggleStartsIndexZero(t *testing.T) {
	c := newTestCycler(t, []string{"http://radio/a", "http://radio/b"})
	defer c.registry.Terminate(proc.RoleStreamPlayer)

	action, err := c.Toggle(time.Now())
	require.NoError(t, err)
	assert.Equal(t, Started, action.Kind)
	assert.Equal(t, 0, action.Index)
	assert.Equal(t, "http://radio/a", action.URL)
	assert.True(t, c.Active())
}

func TestToggle_StopBranchTakesPrecedence(t *testing.T) {
	c := newTestCycler(t, []string{"http://radio/a"})

	_, err := c.Toggle(time.Now())
	require.NoError(t, err)

	pid := c.registry.Get(proc.RoleStreamPlayer).Pid()

	action, err := c.Toggle(time.Now())
	require.NoError(t, err)
	assert.Equal(t, Stopped, action.Kind)
	assert.False(t, c.Active())

	require.Eventually(t, func() bool {
		return syscall.Kill(pid, 0) != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestToggle_QuickRestartSkipsToNextStream(t *testing.T) {
	c := newTestCycler(t, []string{"http://radio/a", "http://radio/b", "http://radio/c"})
	defer c.registry.Terminate(proc.RoleStreamPlayer)

	base := time.Now()

	_, err := c.Toggle(base)
	require.NoError(t, err)

	_, err = c.Toggle(base) // stop at t=0
	require.NoError(t, err)

	action, err := c.Toggle(base.Add(10 * time.Second)) // restart at t=10
	require.NoError(t, err)
	assert.Equal(t, Started, action.Kind)
	assert.Equal(t, 1, action.Index)
	assert.Equal(t, "http://radio/b", action.URL)
}

func TestToggle_ColdRestartResumesSameStream(t *testing.T) {
	c := newTestCycler(t, []string{"http://radio/a", "http://radio/b"})
	defer c.registry.Terminate(proc.RoleStreamPlayer)

	base := time.Now()

	_, err := c.Toggle(base)
	require.NoError(t, err)

	_, err = c.Toggle(base) // stop at t=0
	require.NoError(t, err)

	action, err := c.Toggle(base.Add(70 * time.Second)) // restart after the window
	require.NoError(t, err)
	assert.Equal(t, Started, action.Kind)
	assert.Equal(t, 0, action.Index)
	assert.Equal(t, "http://radio/a", action.URL)
}

func TestToggle_CyclingWrapsAround(t *testing.T) {
	c := newTestCycler(t, []string{"http://radio/a", "http://radio/b"})
	defer c.registry.Terminate(proc.RoleStreamPlayer)

	base := time.Now()
	indices := []int{0}

	_, err := c.Toggle(base)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		now := base.Add(time.Duration(i) * time.Second)
		_, err = c.Toggle(now) // stop
		require.NoError(t, err)
		action, err := c.Toggle(now) // immediate restart: skip
		require.NoError(t, err)
		indices = append(indices, action.Index)
	}

	assert.Equal(t, []int{0, 1, 0, 1}, indices)
}

func TestToggle_NoStreamsConfigured(t *testing.T) {
	c := newTestCycler(t, nil)

	_, err := c.Toggle(time.Now())
	assert.ErrorIs(t, err, ErrNoStreams)
}

func TestToggle_Unavailable(t *testing.T) {
	cfg := config.StreamConfig{
		Player: "definitely-not-a-real-stream-player",
		URLs:   []string{"http://radio/a"},
	}
	c := New(cfg, proc.NewRegistry(nil), nil)

	assert.False(t, c.Available())

	_, err := c.Toggle(time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMonitor_ClearsActiveWhenPlayerDies(t *testing.T) {
	c := newTestCycler(t, []string{"http://radio/a"})
	c.SetSpawner(func(string) *exec.Cmd {
		return exec.Command("true")
	})

	_, err := c.Toggle(time.Now())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !c.Active() }, 5*time.Second, 10*time.Millisecond)
}
