// Package audio is the microphone capture capability. Backends deliver
// little-endian signed 16-bit mono PCM to a DataCallback.
package audio

import (
	"errors"
	"strings"
)

const (
	WAVHeaderSize   = 44
	DefaultRate     = 44100
	DefaultChannels = 1
	BytesPerSample  = 2
)

// ErrDenied is returned when the user or platform refuses capture access.
var ErrDenied = errors.New("microphone access denied")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a headset. Headset
// microphones often run at 8/16kHz which starves the pitch detector.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

// CaptureConfig carries the stream constraints. Echo cancellation and noise
// suppression are requests; a backend that cannot honour them ignores them.
type CaptureConfig struct {
	SampleRate       uint32
	Channels         uint32
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:       DefaultRate,
		Channels:         DefaultChannels,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
