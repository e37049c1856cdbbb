// Package stream owns the radio-stream on/off/cycle state machine.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/CWE3D/lister-sound-system/internal/config"
	"github.com/CWE3D/lister-sound-system/internal/proc"
)

// ErrUnavailable is returned when the stream player binary could not be
// located at startup.
var ErrUnavailable = errors.New("radio streaming unavailable: stream player binary not found")

// ErrNoStreams is returned when no stream URLs are configured.
var ErrNoStreams = errors.New("no radio streams configured")

// ActionKind describes what a Toggle call did.
type ActionKind int

const (
	// Stopped means an active stream was terminated.
	Stopped ActionKind = iota
	// Started means a stream player was spawned.
	Started
)

// Action is the result of a Toggle call.
type Action struct {
	Kind  ActionKind
	URL   string // Set when Kind == Started
	Index int    // Set when Kind == Started
}

// Spawner builds the stream player command for a URL. Swapped out in tests.
type Spawner func(url string) *exec.Cmd

// Cycler cycles through the configured radio streams. A stop followed by a
// restart within the switch timeout advances to the next stream ("skip");
// a restart after the timeout resumes the same stream ("replay").
type Cycler struct {
	logger   *slog.Logger
	registry *proc.Registry

	player        string // Resolved path, empty when unavailable
	playerName    string // Base name, used for orphan sweeps
	urls          []string
	switchTimeout time.Duration

	mu          sync.Mutex
	index       int
	active      *proc.Handle
	lastStop    time.Time
	hasLastStop bool

	spawn Spawner
}

// New creates a Cycler. A missing player binary does not fail construction;
// streaming degrades to permanently unavailable.
func New(cfg config.StreamConfig, registry *proc.Registry, logger *slog.Logger) *Cycler {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cycler{
		logger:        logger,
		registry:      registry,
		playerName:    filepath.Base(cfg.Player),
		urls:          cfg.URLs,
		switchTimeout: cfg.SwitchTimeout.Duration(),
	}
	if c.switchTimeout <= 0 {
		c.switchTimeout = config.DefaultSwitchTimeout
	}

	path, err := exec.LookPath(cfg.Player)
	if err != nil {
		logger.Error("stream player not found, radio streaming unavailable", "binary", cfg.Player)
		return c
	}
	c.player = path
	logger.Info("found stream player", "path", path)

	c.spawn = func(url string) *exec.Cmd {
		return exec.Command(c.player, "--no-video", url)
	}
	return c
}

// SetSpawner replaces the stream player command factory. Intended for
// tests.
func (c *Cycler) SetSpawner(spawn Spawner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spawn = spawn
}

// Available reports whether the stream player binary was located at
// startup.
func (c *Cycler) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player != ""
}

// Active reports whether a stream is currently playing.
func (c *Cycler) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Index returns the current stream index.
func (c *Cycler) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Toggle stops the active stream, or starts one if none is playing.
// The stop branch takes precedence over index advancement. The index
// decision is made synchronously before any process work, so two rapid
// toggles cannot race on it.
func (c *Cycler) Toggle(now time.Time) (Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player == "" {
		return Action{}, ErrUnavailable
	}

	if c.active != nil {
		c.stopLocked(now)
		return Action{Kind: Stopped}, nil
	}

	if len(c.urls) == 0 {
		return Action{}, ErrNoStreams
	}

	// Quick stop->restart means "skip to the next stream"; a cold restart
	// replays the same one. The first-ever toggle stays at index 0.
	if c.hasLastStop && now.Sub(c.lastStop) <= c.switchTimeout {
		c.index = (c.index + 1) % len(c.urls)
		c.logger.Debug("restart within switch window, advancing stream", "index", c.index)
	}

	url := c.urls[c.index]
	if err := c.startLocked(url); err != nil {
		return Action{}, err
	}
	return Action{Kind: Started, URL: url, Index: c.index}, nil
}

// stopLocked terminates the active stream and records the stop time.
func (c *Cycler) stopLocked(now time.Time) {
	c.logger.Info("stopping radio stream", "index", c.index)
	c.registry.Terminate(proc.RoleStreamPlayer)
	c.registry.Sweep(c.playerName)
	c.active = nil
	c.lastStop = now
	c.hasLastStop = true
}

// startLocked spawns the stream player for the URL, after defensively
// clearing any previous player so at most one runs system-wide.
func (c *Cycler) startLocked(url string) error {
	c.registry.Terminate(proc.RoleStreamPlayer)
	c.registry.Sweep(c.playerName)

	cmd := c.spawn(url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start stream player for %s: %w", url, err)
	}

	h := c.registry.Track(proc.RoleStreamPlayer, c.playerName, cmd)
	c.active = h
	c.logger.Info("radio stream started", "url", url, "index", c.index, "pid", h.Pid())

	go c.monitor(h, url)
	return nil
}

// monitor reaps the stream player on a worker goroutine. Streams are
// long-running; an exit here means either an explicit stop or a player
// failure.
func (c *Cycler) monitor(h *proc.Handle, url string) {
	err := h.Cmd.Wait()
	c.registry.Release(h)

	c.mu.Lock()
	died := c.active != nil && c.active.ID == h.ID
	if died {
		c.active = nil
	}
	c.mu.Unlock()

	if died {
		c.logger.Warn("stream player exited unexpectedly", "url", url, "error", err)
	} else {
		c.logger.Debug("stream player stopped", "url", url)
	}
}
