package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"moodscan/audio"
	"moodscan/beep"
	"moodscan/camera"
	"moodscan/config"
	"moodscan/doctor"
	"moodscan/face"
	"moodscan/log"
	"moodscan/metrics"
	"moodscan/session"
	"moodscan/shutdown"
	"moodscan/transcriber"
	"moodscan/voice"
)

var version = "dev"

func main() {
	os.Exit(run())
}

type options struct {
	modality session.Modality
	wav      string
	frames   string
	save     string
	setup    bool
	cfg      config.Config
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: moodscan [flags] voice|face\n\n")
	flag.PrintDefaults()
}

func run() int {
	configFlag := flag.String("config", "", "YAML config file (default: $"+config.EnvPath+")")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	durationFlag := flag.Duration("duration", 0, "Headless: stop the session after this long (0 = until interrupted)")
	wavFlag := flag.String("wav", "", "Use a WAV file as the microphone")
	framesFlag := flag.String("frames", "", "Use a directory of images as the camera")
	saveFlag := flag.String("save", "", "Write the voice session recording to this FLAC file")
	langFlag := flag.String("lang", "", "Recognition language tag (e.g. es-ES)")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	metricsFlag := flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	quietFlag := flag.Bool("quiet", false, "Disable start/stop sounds")
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("moodscan %s\n", version)
		return 0
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *langFlag != "" {
		cfg.Voice.Language = *langFlag
	}
	if *deviceFlag != "" {
		cfg.Voice.Device = *deviceFlag
	}
	if *metricsFlag != "" {
		cfg.Metrics.Addr = *metricsFlag
	}
	if *logPathFlag != "" {
		cfg.Log.Path = *logPathFlag
	}

	logPath, err := log.ResolveDir(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *doctorFlag {
		return doctor.Run(cfg)
	}
	if *quietFlag || !*tuiFlag {
		beep.Disable()
	}

	opts := options{
		modality: session.Voice,
		wav:      *wavFlag,
		frames:   *framesFlag,
		save:     *saveFlag,
		setup:    *setupFlag,
		cfg:      cfg,
	}
	switch arg := flag.Arg(0); arg {
	case "", "voice":
	case "face":
		opts.modality = session.Face
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", arg)
		usage()
		return 2
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				log.Errorf("metrics server: %v", err)
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
	}

	if !*tuiFlag {
		a, deviceLine, err := newAnalyzer(opts, textSink{w: os.Stderr})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer a.Close()
		if deviceLine != "" {
			fmt.Fprintln(os.Stderr, deviceLine)
		}
		res, err := runHeadless(ctx, a, *durationFlag, os.Stdout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if res != nil {
			saveRecording(a, opts.save)
		}
		return 0
	}

	ref := &programRef{}
	a, deviceLine, err := newAnalyzer(opts, programSink{p: ref})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	p := tea.NewProgram(newTUIModel(ctx, a, deviceLine), tea.WithAltScreen(), tea.WithContext(ctx))
	ref.set(p)
	final, err := p.Run()
	ref.set(nil)
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if m, ok := final.(tuiModel); ok && m.result != nil {
		saveRecording(a, opts.save)
	}
	return 0
}

// programRef lets engines built before the program exists send to it.
// Messages sent while no program is attached are dropped.
type programRef struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *programRef) set(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

func (r *programRef) Send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func newAnalyzer(opts options, sink session.Sink) (analyzer, string, error) {
	switch opts.modality {
	case session.Face:
		return newFaceAnalyzer(opts, sink)
	default:
		return newVoiceAnalyzer(opts, sink)
	}
}

func newVoiceAnalyzer(opts options, sink session.Sink) (analyzer, string, error) {
	var actx audio.Context
	if opts.wav != "" {
		fake, err := audio.NewFakeContext(opts.wav, true)
		if err != nil {
			return nil, "", fmt.Errorf("loading WAV: %w", err)
		}
		actx = fake
	} else {
		live, err := audio.NewContext()
		if err != nil {
			log.Errorf("audio context init error: %v", err)
			return nil, "", fmt.Errorf("initializing audio: %w", err)
		}
		actx = live
	}

	var device *audio.DeviceInfo
	switch {
	case opts.setup:
		dev, err := audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\nFalling back to default device\n", err)
		}
		device = dev
	case opts.cfg.Voice.Device != "":
		dev, err := audio.FindDevice(actx, opts.cfg.Voice.Device)
		if err != nil {
			log.Warnf("device lookup failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: %v, using default device\n", err)
		}
		device = dev
	}

	tr, err := transcriber.New()
	if err != nil {
		log.Warnf("transcription disabled: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: transcription disabled: %v\n", err)
		tr = nil
	}

	e, err := voice.New(voice.Options{
		Config:      opts.cfg.Voice,
		Audio:       actx,
		Device:      device,
		Transcriber: tr,
		Sink:        sink,
		Record:      opts.save != "",
	})
	if err != nil {
		actx.Close()
		return nil, "", err
	}
	return closingAnalyzer{voiceAnalyzer{e}, actx.Close}, deviceLine(device), nil
}

func newFaceAnalyzer(opts options, sink session.Sink) (analyzer, string, error) {
	if opts.frames == "" {
		return nil, "", fmt.Errorf("no camera backend available, pass -frames DIR")
	}
	cams, err := camera.NewDirContext(opts.frames)
	if err != nil {
		return nil, "", err
	}
	e, err := face.New(face.Options{
		Config: opts.cfg.Face,
		Camera: cams,
		Models: face.DefaultCache(opts.cfg.Face),
		Sink:   sink,
	})
	if err != nil {
		return nil, "", err
	}
	return closingAnalyzer{faceAnalyzer{e}, cams.Close}, "camera: " + opts.frames, nil
}

// closingAnalyzer releases the capture context after the engine.
type closingAnalyzer struct {
	analyzer
	release func()
}

func (c closingAnalyzer) Close() {
	c.analyzer.Close()
	c.release()
}

func deviceLine(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

// runHeadless runs one session, stopping it after d or when ctx ends, and
// writes the result to out as JSON.
func runHeadless(ctx context.Context, a analyzer, d time.Duration, out io.Writer) (*session.Result, error) {
	if err := a.Start(ctx); err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
	case <-timeout:
	}

	res, err := a.Stop(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return res, err
	}
	return res, nil
}

func saveRecording(a analyzer, path string) {
	if path == "" {
		return
	}
	c, ok := a.(closingAnalyzer)
	if !ok {
		return
	}
	v, ok := c.analyzer.(voiceAnalyzer)
	if !ok {
		return
	}
	rec := v.Recording()
	if rec == nil {
		return
	}
	if err := rec.Save(path); err != nil {
		log.Errorf("saving recording: %v", err)
		fmt.Fprintf(os.Stderr, "Error saving recording: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Saved %d frames to %s\n", rec.Frames(), path)
}
