// Package log writes the diagnostics log. Every call is a no-op until Init.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvPath  = "MOODSCAN_LOG_PATH"
	FileName = "diagnostics_log.txt"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady atomic.Bool
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: MOODSCAN_LOG_PATH environment variable
	if envPath := os.Getenv(EnvPath); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, FileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", os.Getpid()).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(id, modality, source string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("id", id).
		Str("modality", modality).
		Str("source", source).
		Msg("session_start")
}

func SessionEnd(id, modality, primary string, confidence float64, d time.Duration) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("id", id).
		Str("modality", modality).
		Str("primary", primary).
		Float64("confidence", confidence).
		Dur("duration", d).
		Msg("session_end")
}

func PermissionDenied(modality string, err error) {
	if !logReady.Load() {
		return
	}
	diagLog.Warn().Str("modality", modality).Err(err).Msg("permission_denied")
}

func RecognizerRestart(reason string, attempt int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().Str("reason", reason).Int("attempt", attempt).Msg("recognizer_restart")
}

func DetectError(err error) {
	if !logReady.Load() {
		return
	}
	diagLog.Warn().Err(err).Msg("detect_error")
}

func ModelLoad(source string, d time.Duration, err error) {
	if !logReady.Load() {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Warn().Err(err)
	}
	ev.Str("source", source).Dur("took", d).Msg("model_load")
}

type StreamMetricsData struct {
	ConnectMs    float64
	TotalMs      float64
	AudioS       float64
	SentChunks   int
	SentKB       float64
	RecvMessages int
	RecvFinal    int
}

func StreamMetrics(m StreamMetricsData) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Float64("connect_ms", m.ConnectMs).
		Float64("total_ms", m.TotalMs).
		Float64("audio_s", m.AudioS).
		Int("sent_chunks", m.SentChunks).
		Float64("sent_kb", m.SentKB).
		Int("recv_messages", m.RecvMessages).
		Int("recv_final", m.RecvFinal).
		Msg("stream_transcription")
}
