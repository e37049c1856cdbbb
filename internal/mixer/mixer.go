// Package mixer manages the system PCM volume through the ALSA mixer
// utility.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/GiGurra/cmder"

	"github.com/CWE3D/lister-sound-system/internal/config"
)

// ErrUnavailable is returned for every call when the mixer binary could not
// be located at startup.
var ErrUnavailable = errors.New("volume control unavailable: mixer binary not found")

// DefaultVolume is assumed when the mixer output cannot be parsed.
const DefaultVolume = 50

// mixerTimeout bounds every mixer invocation to keep command latency low.
const mixerTimeout = 5 * time.Second

var percentRe = regexp.MustCompile(`\[(\d+)%\]`)

// Runner invokes an external command and returns its stdout.
// Swapped out in tests.
type Runner func(ctx context.Context, args ...string) (string, error)

func cmderRunner(ctx context.Context, args ...string) (string, error) {
	result := cmder.New(args...).
		WithAttemptTimeout(mixerTimeout).
		Run(ctx)
	if result.Err != nil {
		return result.StdOut, result.Err
	}
	return result.StdOut, nil
}

// Mixer owns the clamped in-memory volume and its synchronization with the
// OS mixer. The in-memory value only changes on a successful OS call.
type Mixer struct {
	mu     sync.Mutex
	logger *slog.Logger

	binary  string // Resolved path, empty when unavailable
	channel string
	step    int
	min     int
	max     int

	current     int
	initialized bool

	run Runner
}

// New creates a Mixer from config. A missing mixer binary does not fail
// construction; the component degrades to permanently unavailable.
func New(cfg config.VolumeConfig, logger *slog.Logger) *Mixer {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Mixer{
		logger:  logger,
		channel: cfg.Channel,
		step:    cfg.Step,
		min:     cfg.Min,
		max:     cfg.Max,
		run:     cmderRunner,
	}

	path, err := exec.LookPath(cfg.Mixer)
	if err != nil {
		logger.Error("mixer binary not found, volume control unavailable", "binary", cfg.Mixer)
		return m
	}
	m.binary = path
	logger.Info("found mixer binary", "path", path)
	return m
}

// SetRunner replaces the command runner. Intended for tests.
func (m *Mixer) SetRunner(run Runner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.run = run
}

// Available reports whether the mixer binary was located at startup.
func (m *Mixer) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.binary != ""
}

// Get returns the current volume, querying the OS mixer on first access.
func (m *Mixer) Get(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(ctx)
}

func (m *Mixer) getLocked(ctx context.Context) (int, error) {
	if m.binary == "" {
		return 0, ErrUnavailable
	}
	if m.initialized {
		return m.current, nil
	}

	out, err := m.run(ctx, m.binary, "sget", m.channel)
	if err != nil {
		m.logger.Warn("failed to query mixer, assuming default volume",
			"channel", m.channel, "default", DefaultVolume, "error", err)
		m.current = DefaultVolume
	} else if vol, ok := parsePercent(out); ok {
		m.current = vol
	} else {
		m.logger.Warn("could not parse mixer output, assuming default volume",
			"channel", m.channel, "default", DefaultVolume)
		m.current = DefaultVolume
	}

	m.initialized = true
	m.logger.Debug("volume initialized from mixer", "volume", m.current)
	return m.current, nil
}

// Set clamps target to the configured bounds and applies it through the OS
// mixer. On failure the in-memory volume is left unchanged.
func (m *Mixer) Set(ctx context.Context, target int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.binary == "" {
		return 0, ErrUnavailable
	}

	target = clamp(target, m.min, m.max)

	if _, err := m.run(ctx, m.binary, "sset", m.channel, fmt.Sprintf("%d%%", target)); err != nil {
		return 0, fmt.Errorf("failed to set volume to %d%%: %w", target, err)
	}

	m.current = target
	m.initialized = true
	m.logger.Info("volume set", "channel", m.channel, "volume", target)
	return target, nil
}

// Step adjusts the volume by one configured step in the given direction
// (+1 or -1).
func (m *Mixer) Step(ctx context.Context, direction int) (int, error) {
	m.mu.Lock()
	current, err := m.getLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return m.Set(ctx, current+direction*m.step)
}

func parsePercent(out string) (int, bool) {
	match := percentRe.FindStringSubmatch(out)
	if match == nil {
		return 0, false
	}
	vol, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return vol, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
