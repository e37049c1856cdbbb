package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/CWE3D/lister-sound-system/internal/catalog"
	"github.com/CWE3D/lister-sound-system/internal/mixer"
	"github.com/CWE3D/lister-sound-system/internal/playback"
	"github.com/CWE3D/lister-sound-system/internal/sched"
	"github.com/CWE3D/lister-sound-system/internal/stream"
)

// Controller binds the sound-system components behind the command set.
// It is constructed once at startup and passed around explicitly; there is
// no ambient global state.
type Controller struct {
	Logger   *slog.Logger
	Catalog  *catalog.Catalog
	Mixer    *mixer.Mixer
	Playback *playback.Supervisor
	Stream   *stream.Cycler
	Sched    *sched.Scheduler
	Now      func() time.Time
}

// NewController wires the components into a Controller.
func NewController(
	logger *slog.Logger,
	cat *catalog.Catalog,
	mix *mixer.Mixer,
	pb *playback.Supervisor,
	st *stream.Cycler,
	s *sched.Scheduler,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Logger:   logger,
		Catalog:  cat,
		Mixer:    mix,
		Playback: pb,
		Stream:   st,
		Sched:    s,
		Now:      time.Now,
	}
}

// RegisterCommands binds the external command set onto the dispatcher.
func (c *Controller) RegisterCommands(d *Dispatcher) {
	d.Register("PLAY_SOUND", c.cmdPlaySound)
	d.Register("SOUND_LIST", c.cmdSoundList)
	d.Register("VOLUME_UP", c.cmdVolumeUp)
	d.Register("VOLUME_DOWN", c.cmdVolumeDown)
	d.Register("STREAM_RADIO", c.cmdStreamRadio)
}

// run executes fn on the scheduler so state reads and mutations of all
// components are serialized.
func (c *Controller) run(fn func() (string, error)) (string, error) {
	var resp string
	var err error
	c.Sched.Do(func() {
		resp, err = fn()
	})
	return resp, err
}

// cmdPlaySound handles PLAY_SOUND SOUND=<spec> [NOW=<0|1>].
func (c *Controller) cmdPlaySound(_ context.Context, params Params) (string, error) {
	spec := params.Get("SOUND")
	if spec == "" {
		return "", fmt.Errorf("no sound specified")
	}
	force := params.GetInt("NOW", 0) == 1

	return c.run(func() (string, error) {
		path, err := c.Catalog.Resolve(spec)
		if err != nil {
			return "", err
		}

		result, err := c.Playback.Play(path, force)
		if err != nil {
			return "", err
		}
		if result == playback.Busy {
			return "Sound already playing, ignoring request", nil
		}
		return fmt.Sprintf("Playing sound: %s", path), nil
	})
}

// cmdSoundList handles SOUND_LIST.
func (c *Controller) cmdSoundList(_ context.Context, _ Params) (string, error) {
	return c.run(func() (string, error) {
		var msg []string
		msg = append(msg, "Available sounds:", "")

		msg = append(msg, "Predefined sounds:")
		predefined := c.Catalog.Predefined()
		names := lo.Keys(predefined)
		sort.Strings(names)
		for _, name := range names {
			path := predefined[name]
			msg = append(msg, fmt.Sprintf("%s %s: %s", statusMark(c.Catalog.Verify(path)), name, path))
		}

		entries, err := c.Catalog.List()
		if err != nil {
			return "", err
		}

		msg = append(msg, "", "Available WAV files:")
		for _, e := range entries {
			line := fmt.Sprintf("%s %s (%s)", statusMark(e.Valid), e.Name, humanize.Bytes(uint64(e.Size)))
			if e.Info != nil {
				line += fmt.Sprintf(" [%s]", e.Info.Duration.Round(time.Millisecond))
			}
			msg = append(msg, line)
		}

		msg = append(msg, "", fmt.Sprintf("Sound directory: %s", c.Catalog.Dir()))
		return strings.Join(msg, "\n"), nil
	})
}

// cmdVolumeUp handles VOLUME_UP.
func (c *Controller) cmdVolumeUp(ctx context.Context, _ Params) (string, error) {
	return c.stepVolume(ctx, +1)
}

// cmdVolumeDown handles VOLUME_DOWN.
func (c *Controller) cmdVolumeDown(ctx context.Context, _ Params) (string, error) {
	return c.stepVolume(ctx, -1)
}

func (c *Controller) stepVolume(ctx context.Context, direction int) (string, error) {
	return c.run(func() (string, error) {
		vol, err := c.Mixer.Step(ctx, direction)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Volume: %d%%", vol), nil
	})
}

// cmdStreamRadio handles STREAM_RADIO.
func (c *Controller) cmdStreamRadio(_ context.Context, _ Params) (string, error) {
	return c.run(func() (string, error) {
		action, err := c.Stream.Toggle(c.Now())
		if err != nil {
			return "", err
		}
		if action.Kind == stream.Stopped {
			return "Radio stream stopped", nil
		}
		return fmt.Sprintf("Radio stream started: %s (stream %d)", action.URL, action.Index+1), nil
	})
}

func statusMark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
