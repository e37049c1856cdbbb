// Package proc tracks spawned player processes and sweeps orphans.
package proc

import (
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"
)

// Role identifies the logical owner of a tracked process.
type Role string

const (
	RoleSoundPlayer  Role = "sound-player"
	RoleStreamPlayer Role = "stream-player"
)

// Handle is one tracked player process.
type Handle struct {
	ID        string
	Role      Role
	Binary    string // Base name of the player binary
	Cmd       *exec.Cmd
	StartedAt time.Time
}

// Pid returns the OS pid, or -1 if the process never started.
func (h *Handle) Pid() int {
	if h == nil || h.Cmd == nil || h.Cmd.Process == nil {
		return -1
	}
	return h.Cmd.Process.Pid
}

// Registry tracks at most one player process per role. Termination goes
// through tracked handles first; the name-based sweep is a best-effort
// fallback for players that predate this controller instance.
type Registry struct {
	mu      sync.Mutex
	logger  *slog.Logger
	handles map[Role]*Handle
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		handles: make(map[Role]*Handle),
		now:     time.Now,
	}
}

// Track records a started process under the given role, replacing any
// previous handle for that role, and returns the new handle.
func (r *Registry) Track(role Role, binary string, cmd *exec.Cmd) *Handle {
	h := &Handle{
		ID:        uuid.NewString(),
		Role:      role,
		Binary:    binary,
		Cmd:       cmd,
		StartedAt: r.now(),
	}

	r.mu.Lock()
	r.handles[role] = h
	r.mu.Unlock()

	r.logger.Debug("tracking player process", "role", role, "pid", h.Pid(), "binary", binary)
	return h
}

// Get returns the tracked handle for the role, or nil.
func (r *Registry) Get(role Role) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[role]
}

// Release removes the handle if it is still the one tracked for its role.
// Workers call this after reaping their process; a newer handle tracked by a
// force-preemption in the meantime is left alone.
func (r *Registry) Release(h *Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	if current, ok := r.handles[h.Role]; ok && current.ID == h.ID {
		delete(r.handles, h.Role)
	}
	r.mu.Unlock()
}

// Terminate signals the tracked process for the role and drops the handle.
// Reaping is left to the worker waiting on the process.
func (r *Registry) Terminate(role Role) {
	r.mu.Lock()
	h := r.handles[role]
	delete(r.handles, role)
	r.mu.Unlock()

	if h == nil || h.Cmd == nil || h.Cmd.Process == nil {
		return
	}

	pid := h.Pid()
	if err := h.Cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already exited, or beyond saving: escalate.
		if killErr := h.Cmd.Process.Kill(); killErr != nil {
			r.logger.Debug("kill of tracked process failed", "role", role, "pid", pid, "error", killErr)
		}
	}
	r.logger.Debug("terminated tracked player process", "role", role, "pid", pid)
}

// Sweep kills every system process whose executable base name matches
// binary, skipping this daemon and any pids the registry still tracks. It
// returns the number of processes signalled. This catches orphans that
// outlived an earlier controller instance.
func (r *Registry) Sweep(binary string) int {
	procs, err := process.Processes()
	if err != nil {
		r.logger.Warn("failed to enumerate processes for sweep", "error", err)
		return 0
	}

	ownPid := int32(os.Getpid())
	tracked := r.trackedPids()

	swept := 0
	for _, p := range procs {
		if p.Pid == ownPid || tracked[p.Pid] {
			continue
		}
		name, err := p.Name()
		if err != nil || name != binary {
			continue
		}
		if err := p.Terminate(); err != nil {
			if killErr := p.Kill(); killErr != nil {
				r.logger.Debug("failed to kill orphan process", "pid", p.Pid, "binary", binary, "error", killErr)
				continue
			}
		}
		r.logger.Info("swept orphan player process", "pid", p.Pid, "binary", binary)
		swept++
	}
	return swept
}

func (r *Registry) trackedPids() map[int32]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pids := make(map[int32]bool, len(r.handles))
	for _, h := range r.handles {
		if pid := h.Pid(); pid > 0 {
			pids[int32(pid)] = true
		}
	}
	return pids
}
