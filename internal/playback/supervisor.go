// Package playback enforces the at-most-one-concurrent-sound policy and
// supervises the external sound player process.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CWE3D/lister-sound-system/internal/config"
	"github.com/CWE3D/lister-sound-system/internal/proc"
)

// ErrUnavailable is returned when the sound player binary could not be
// located at startup.
var ErrUnavailable = errors.New("sound playback unavailable: player binary not found")

// Result is the outcome of a Play request.
type Result int

const (
	// Started means a player process was spawned for the request.
	Started Result = iota
	// Busy means a sound is already playing and the request was dropped.
	// It is a no-op success, not an error.
	Busy
)

// Spawner builds the player command for a sound file. Swapped out in tests.
type Spawner func(file string) *exec.Cmd

// Supervisor owns the playback state machine: IDLE -> PLAYING on spawn,
// PLAYING -> IDLE on exit, timeout kill, or forced preemption.
type Supervisor struct {
	logger   *slog.Logger
	registry *proc.Registry

	player     string // Resolved path, empty when unavailable
	playerName string // Base name, used for orphan sweeps
	device     string
	timeout    time.Duration

	// playing is a best-effort visibility indicator, not a lock.
	playing atomic.Bool

	mu      sync.Mutex
	current *proc.Handle

	spawn Spawner
}

// New creates a Supervisor. A missing player binary does not fail
// construction; playback degrades to permanently unavailable.
func New(cfg config.SoundConfig, registry *proc.Registry, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Supervisor{
		logger:     logger,
		registry:   registry,
		playerName: filepath.Base(cfg.Player),
		device:     cfg.Device,
		timeout:    cfg.PlaybackTimeout.Duration(),
	}
	if s.timeout <= 0 {
		s.timeout = config.DefaultPlaybackTimeout
	}

	path, err := exec.LookPath(cfg.Player)
	if err != nil {
		logger.Error("sound player not found, playback unavailable", "binary", cfg.Player)
		return s
	}
	s.player = path
	logger.Info("found sound player", "path", path)

	s.spawn = func(file string) *exec.Cmd {
		return exec.Command(s.player, "-D", s.device, file)
	}
	return s
}

// SetSpawner replaces the player command factory. Intended for tests.
func (s *Supervisor) SetSpawner(spawn Spawner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawn = spawn
}

// Available reports whether the player binary was located at startup.
func (s *Supervisor) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player != ""
}

// Playing reports whether a sound is currently considered in flight.
func (s *Supervisor) Playing() bool {
	return s.playing.Load()
}

// Play requests playback of a verified sound file. Without force, a request
// while playing returns Busy. With force, the in-flight player is
// terminated (tracked handle first, then an orphan sweep) and the flag is
// reset before the new spawn, so the new request is always accepted.
// The spawned player is waited on by a dedicated worker goroutine; Play
// itself returns as soon as the process has started.
func (s *Supervisor) Play(file string, force bool) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == "" {
		return 0, ErrUnavailable
	}

	if s.playing.Load() {
		if !force {
			s.logger.Info("sound already playing, request dropped", "file", file)
			return Busy, nil
		}
		s.preemptLocked()
	}

	cmd := s.spawn(file)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start sound player for %s: %w", file, err)
	}

	h := s.registry.Track(proc.RoleSoundPlayer, s.playerName, cmd)
	s.current = h
	s.playing.Store(true)
	s.logger.Info("sound playback started", "file", file, "pid", h.Pid(), "force", force)

	go s.wait(h, file)
	return Started, nil
}

// preemptLocked terminates the in-flight player and forces the state back
// to idle immediately, without waiting for the OS to reap the old process.
func (s *Supervisor) preemptLocked() {
	s.logger.Info("preempting in-flight sound playback")
	s.registry.Terminate(proc.RoleSoundPlayer)
	s.registry.Sweep(s.playerName)
	s.current = nil
	s.playing.Store(false)
}

// wait blocks until the player exits or the playback timeout fires, then
// clears the state if this handle is still the current one. Player
// failures are logged, never surfaced: the command already returned
// "started".
func (s *Supervisor) wait(h *proc.Handle, file string) {
	done := make(chan error, 1)
	go func() { done <- h.Cmd.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(s.timeout):
		s.logger.Warn("sound playback timed out, killing player", "file", file, "pid", h.Pid(), "timeout", s.timeout)
		if h.Cmd.Process != nil {
			_ = h.Cmd.Process.Kill()
		}
		err = <-done
	}

	if err != nil {
		s.logger.Warn("sound player exited with error", "file", file, "error", err)
	} else {
		s.logger.Debug("sound playback completed", "file", file)
	}

	s.registry.Release(h)

	s.mu.Lock()
	if s.current != nil && s.current.ID == h.ID {
		s.current = nil
		s.playing.Store(false)
	}
	s.mu.Unlock()
}
