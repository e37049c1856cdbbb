package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CWE3D/lister-sound-system/internal/catalog"
	"github.com/CWE3D/lister-sound-system/internal/command"
	"github.com/CWE3D/lister-sound-system/internal/config"
	"github.com/CWE3D/lister-sound-system/internal/mixer"
	"github.com/CWE3D/lister-sound-system/internal/playback"
	"github.com/CWE3D/lister-sound-system/internal/proc"
	"github.com/CWE3D/lister-sound-system/internal/sched"
	"github.com/CWE3D/lister-sound-system/internal/stream"
)

// writeWav writes a minimal valid 16-bit mono PCM WAV file.
func writeWav(t *testing.T, path string) {
	t.Helper()

	data := make([]byte, 8)
	var buf []byte
	buf = append(buf, []byte("RIFF")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(data)))
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 8000)
	buf = binary.LittleEndian.AppendUint32(buf, 16000)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, []byte("data")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	soundDir := t.TempDir()
	binDir := t.TempDir()

	player := filepath.Join(binDir, "lister-test-player")
	require.NoError(t, os.WriteFile(player, []byte("#!/bin/sh\nexec sleep 0.2\n"), 0o755))
	streamer := filepath.Join(binDir, "lister-test-streamer")
	require.NoError(t, os.WriteFile(streamer, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755))

	cat := catalog.New(soundDir, nil, nil)

	mix := mixer.New(config.VolumeConfig{
		Mixer: "true", Channel: "PCM", Step: 5, Min: 0, Max: 100,
	}, nil)
	mix.SetRunner(func(_ context.Context, _ ...string) (string, error) {
		return "Mono: Playback 100 [40%] [on]", nil
	})

	registry := proc.NewRegistry(nil)
	pb := playback.New(config.SoundConfig{
		Player: player, Device: "default", PlaybackTimeout: config.Duration(10 * time.Second),
	}, registry, nil)
	pb.SetSpawner(func(string) *exec.Cmd { return exec.Command(player) })

	st := stream.New(config.StreamConfig{
		Player:        streamer,
		URLs:          []string{"http://radio/a"},
		SwitchTimeout: config.Duration(60 * time.Second),
	}, registry, nil)
	st.SetSpawner(func(string) *exec.Cmd { return exec.Command("sleep", "30") })

	s := sched.New(nil)
	s.Start()
	t.Cleanup(s.Stop)
	t.Cleanup(func() { registry.Terminate(proc.RoleStreamPlayer) })

	controller := command.NewController(nil, cat, mix, pb, st, s)
	dispatcher := command.NewDispatcher(nil)
	controller.RegisterCommands(dispatcher)

	srv := New(controller, dispatcher, nil)
	srv.SetDeviceLister(func(context.Context) ([]string, error) {
		return []string{"card 0: Headphones [bcm2835 Headphones]"}, nil
	})
	return srv, soundDir
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	parsed := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestHandleList(t *testing.T) {
	srv, soundDir := newTestServer(t)
	writeWav(t, filepath.Join(soundDir, "done.wav"))

	rec, body := doJSON(t, srv, http.MethodGet, "/server/sound/list", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, soundDir, body["sound_dir"])

	sounds := body["sounds"].(map[string]any)
	assert.Equal(t, filepath.Join(soundDir, "done.wav"), sounds["done"])
}

func TestHandlePlay(t *testing.T) {
	srv, soundDir := newTestServer(t)
	writeWav(t, filepath.Join(soundDir, "done.wav"))

	rec, body := doJSON(t, srv, http.MethodPost, "/server/sound/play", `{"sound":"done"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "done", body["sound"])
}

func TestHandlePlay_NameWithSpaces(t *testing.T) {
	srv, soundDir := newTestServer(t)
	writeWav(t, filepath.Join(soundDir, "print done v=2.wav"))

	rec, body := doJSON(t, srv, http.MethodPost, "/server/sound/play", `{"sound":"print done v=2"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "print done v=2", body["sound"])
}

func TestHandlePlay_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/server/sound/play", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodPost, "/server/sound/play", `{"sound":"missing"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScan(t *testing.T) {
	srv, soundDir := newTestServer(t)
	writeWav(t, filepath.Join(soundDir, "ping.wav"))

	rec, body := doJSON(t, srv, http.MethodPost, "/server/sound/scan", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
}

func TestHandleInfo(t *testing.T) {
	srv, soundDir := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/server/sound/info", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, soundDir, body["sound_dir"])

	audio := body["audio_system"].(map[string]any)
	devices := audio["devices"].([]any)
	require.Len(t, devices, 1)
	assert.Contains(t, devices[0], "card 0")
}

func TestHandleVolume(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/server/sound/volume", `{"direction":"up"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Volume: 45%", body["message"])

	rec, _ = doJSON(t, srv, http.MethodPost, "/server/sound/volume", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStream(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/server/sound/stream", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["message"], "started")

	rec, body = doJSON(t, srv, http.MethodPost, "/server/sound/stream", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["message"], "stopped")
}
