package catalog

import (
	"fmt"
	"os"
	"time"

	"github.com/gopxl/beep/v2/wav"
)

// WavInfo holds metadata probed from a WAV file header.
type WavInfo struct {
	Duration   time.Duration `json:"duration"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
}

// Probe decodes the WAV header of the file at path and returns its metadata.
// Decoding stops at the header; samples are never played here, playback is
// the external player's job.
func Probe(path string) (*WavInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer func() { _ = f.Close() }()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav header: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	return &WavInfo{
		Duration:   format.SampleRate.D(streamer.Len()),
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
	}, nil
}
