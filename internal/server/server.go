// Package server exposes the sound system over an HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/GiGurra/cmder"
	"github.com/labstack/echo"

	"github.com/CWE3D/lister-sound-system/internal/command"
)

// deviceQueryTimeout bounds the aplay -l device enumeration.
const deviceQueryTimeout = 5 * time.Second

// DeviceLister enumerates ALSA playback devices. Swapped out in tests.
type DeviceLister func(ctx context.Context) ([]string, error)

// Server serves the sound-system HTTP API.
type Server struct {
	echo       *echo.Echo
	logger     *slog.Logger
	controller *command.Controller
	dispatcher *command.Dispatcher

	listDevices DeviceLister
}

// New creates a Server around the controller and its command dispatcher.
func New(controller *command.Controller, dispatcher *command.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:        echo.New(),
		logger:      logger,
		controller:  controller,
		dispatcher:  dispatcher,
		listDevices: listALSADevices,
	}
	s.echo.HideBanner = true
	s.routes()
	return s
}

// SetDeviceLister replaces the ALSA device enumeration. Intended for tests.
func (s *Server) SetDeviceLister(fn DeviceLister) {
	s.listDevices = fn
}

func (s *Server) routes() {
	g := s.echo.Group("/server/sound")
	g.GET("/list", s.handleList)
	g.POST("/play", s.handlePlay)
	g.POST("/scan", s.handleScan)
	g.GET("/info", s.handleInfo)
	g.POST("/volume", s.handleVolume)
	g.POST("/stream", s.handleStream)
}

// Start begins serving on addr and blocks until shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http api listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler, used by tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) handleList(c echo.Context) error {
	entries, err := s.controller.Catalog.List()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	sounds, err := s.controller.Catalog.Scan()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"sounds":    sounds,
		"entries":   entries,
		"sound_dir": s.controller.Catalog.Dir(),
	})
}

type playRequest struct {
	Sound string `json:"sound"`
	Now   bool   `json:"now"`
}

func (s *Server) handlePlay(c echo.Context) error {
	req := playRequest{}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Sound == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no sound specified")
	}

	// Structured params, not a command line: sound names with spaces or
	// '=' must stay one value.
	params := command.Params{"SOUND": req.Sound}
	if req.Now {
		params["NOW"] = "1"
	}

	resp, err := s.dispatcher.Call(c.Request().Context(), "PLAY_SOUND", params)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"sound":   req.Sound,
		"message": resp,
	})
}

func (s *Server) handleScan(c echo.Context) error {
	sounds, err := s.controller.Catalog.Scan()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "success",
		"sounds":    sounds,
		"sound_dir": s.controller.Catalog.Dir(),
	})
}

func (s *Server) handleInfo(c echo.Context) error {
	devices, err := s.listDevices(c.Request().Context())
	if err != nil {
		s.logger.Warn("failed to enumerate audio devices", "error", err)
		devices = nil
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":      "online",
		"sound_dir":   s.controller.Catalog.Dir(),
		"sound_count": len(s.controller.Catalog.Cached()),
		"playback": map[string]any{
			"available": s.controller.Playback.Available(),
			"playing":   s.controller.Playback.Playing(),
		},
		"stream": map[string]any{
			"available": s.controller.Stream.Available(),
			"active":    s.controller.Stream.Active(),
			"index":     s.controller.Stream.Index(),
		},
		"volume": map[string]any{
			"available": s.controller.Mixer.Available(),
		},
		"audio_system": map[string]any{
			"devices": devices,
		},
	})
}

type volumeRequest struct {
	Direction string `json:"direction"` // "up" or "down"
}

func (s *Server) handleVolume(c echo.Context) error {
	req := volumeRequest{}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var name string
	switch req.Direction {
	case "up":
		name = "VOLUME_UP"
	case "down":
		name = "VOLUME_DOWN"
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "direction must be \"up\" or \"down\"")
	}

	resp, err := s.dispatcher.Call(c.Request().Context(), name, nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": resp,
	})
}

func (s *Server) handleStream(c echo.Context) error {
	resp, err := s.dispatcher.Call(c.Request().Context(), "STREAM_RADIO", nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": resp,
	})
}

// listALSADevices parses `aplay -l` output for card lines.
func listALSADevices(ctx context.Context) ([]string, error) {
	result := cmder.New("aplay", "-l").
		WithAttemptTimeout(deviceQueryTimeout).
		Run(ctx)
	if result.Err != nil {
		return nil, result.Err
	}

	var devices []string
	for _, line := range strings.Split(result.StdOut, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "card") {
			devices = append(devices, line)
		}
	}
	return devices, nil
}
