package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"moodscan/audio"
	"moodscan/config"
	"moodscan/dsp"
	"moodscan/face"
	"moodscan/transcriber"
)

const listenFor = 3 * time.Second

// checker holds the capabilities under test so they can be swapped for fakes.
type checker struct {
	cfg    config.Config
	in     *bufio.Reader
	out    io.Writer
	audio  audio.Context
	tr     transcriber.Transcriber
	models *face.ModelCache
	listen time.Duration

	pcm []byte
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	c := &checker{
		cfg:    cfg,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		models: face.DefaultCache(cfg.Face),
		listen: listenFor,
	}
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("Warning: cannot connect to audio: %v\n", err)
	} else {
		defer actx.Close()
		c.audio = actx
	}
	if tr, err := transcriber.New(); err == nil {
		c.tr = tr
	}
	return c.run()
}

func (c *checker) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *checker) run() int {
	c.printf("moodscan doctor - interactive system diagnostics\n")
	c.printf("================================================\n")

	allPass := true
	for _, check := range []func() bool{c.checkMicrophone, c.checkRecognizer, c.checkFaceModel} {
		if !check() {
			allPass = false
		}
	}

	c.printf("\n")
	if allPass {
		c.printf("All checks passed!\n")
		return 0
	}
	c.printf("Some checks failed. See details above.\n")
	return 1
}

func (c *checker) checkMicrophone() bool {
	c.printf("\n[1/3] Microphone level and pitch\n")
	if c.audio == nil {
		c.printf("  FAIL: no audio backend\n")
		return false
	}

	var device *audio.DeviceInfo
	if name := c.cfg.Voice.Device; name != "" {
		dev, err := audio.FindDevice(c.audio, name)
		if err != nil {
			c.printf("  FAIL: %v\n", err)
			return false
		}
		device = dev
	}

	c.printf("Press Enter and speak for %.0f seconds...", c.listen.Seconds())
	c.in.ReadString('\n')

	pcm, name, err := c.record(device)
	if err != nil {
		c.printf("  FAIL: recording error: %v\n", err)
		return false
	}
	c.pcm = pcm
	if len(pcm) == 0 {
		c.printf("  FAIL: no audio captured from %s\n", name)
		return false
	}

	samples := dsp.FromS16LE(pcm)
	rms := dsp.RMS(samples)
	pitch := medianPitch(samples, c.cfg.Voice)
	c.printf("  Device: %s\n  Captured %.1fs, rms %.3f, pitch %.0f Hz\n",
		name, float64(len(samples))/float64(c.cfg.Voice.SampleRate), rms, pitch)

	if rms < c.cfg.Voice.SilenceLevel {
		c.printf("  FAIL: input is silent, check the microphone gain\n")
		return false
	}
	if pitch == 0 {
		c.printf("  FAIL: no voiced pitch found\n")
		return false
	}
	if audio.IsBluetooth(name) {
		c.printf("  Warning: headset microphone, pitch may be unreliable\n")
	}
	c.printf("  PASS: microphone hears a voice\n")
	return true
}

// record captures c.listen of audio.
func (c *checker) record(device *audio.DeviceInfo) ([]byte, string, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex

	capture, err := c.audio.NewCapture(device, audio.CaptureConfig{
		SampleRate: uint32(c.cfg.Voice.SampleRate),
		Channels:   audio.DefaultChannels,
	})
	if err != nil {
		return nil, "", err
	}
	defer capture.Close()

	capture.SetCallback(func(data []byte, _ uint32) {
		bufMu.Lock()
		pcmBuf = append(pcmBuf, data...)
		bufMu.Unlock()
	})
	if err := capture.Start(); err != nil {
		return nil, "", err
	}

	c.printf("  Recording")
	deadline := time.After(c.listen)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-deadline:
			break wait
		case <-ticker.C:
			c.printf(".")
		}
	}
	capture.ClearCallback()
	capture.Stop()
	c.printf(" done\n")

	bufMu.Lock()
	defer bufMu.Unlock()
	return pcmBuf, capture.DeviceName(), nil
}

// medianPitch runs the engine's pitch detector over consecutive windows and
// returns the median of the voiced ones.
func medianPitch(samples []float64, cfg config.Voice) float64 {
	win := cfg.FFTSize / 2
	if win <= 0 {
		return 0
	}
	pd := dsp.NewPitchDetector(float64(cfg.SampleRate))
	var voiced []float64
	for off := 0; off+win <= len(samples); off += win {
		if p := pd.Detect(samples[off : off+win]); p > 0 {
			voiced = append(voiced, p)
		}
	}
	if len(voiced) == 0 {
		return 0
	}
	slices.Sort(voiced)
	return voiced[len(voiced)/2]
}

func (c *checker) checkRecognizer() bool {
	c.printf("\n[2/3] Speech recognizer\n")
	if c.tr == nil {
		c.printf("  FAIL: no recognizer configured (set DEEPGRAM_API_KEY)\n")
		return false
	}
	if len(c.pcm) == 0 {
		c.printf("  FAIL: nothing recorded to transcribe\n")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sess, err := c.tr.NewSession(ctx, transcriber.SessionConfig{
		Language:   c.cfg.Voice.Language,
		SampleRate: c.cfg.Voice.SampleRate,
		Channels:   audio.DefaultChannels,
	})
	if err != nil {
		c.printf("  FAIL: session error: %v\n", err)
		return false
	}
	c.printf("  Sending %.1f KB to %s (%s)...\n", float64(len(c.pcm))/1024, c.tr.Name(), c.cfg.Voice.Language)
	sess.Feed(c.pcm)

	var finals []string
	go func() {
		time.Sleep(time.Second)
		sess.Close()
	}()
	for u := range sess.Updates() {
		if f := u.Final(); f != "" {
			finals = append(finals, f)
		}
	}
	res, err := sess.Close()
	if err != nil && !errors.Is(err, transcriber.ErrNoSpeech) {
		c.printf("  FAIL: transcription error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(strings.Join(finals, " "))
	if text == "" {
		text = strings.TrimSpace(res.Text)
	}
	if text == "" {
		text = "(no speech detected)"
	}
	c.printf("\n  Transcribed text: %s\n\n", text)

	c.printf("Is this correct? [y/n]: ")
	confirm, _ := c.in.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm == "y" || confirm == "yes" {
		c.printf("  PASS: transcription verified by user\n")
		return true
	}
	c.printf("  FAIL: transcription not confirmed\n")
	return false
}

func (c *checker) checkFaceModel() bool {
	c.printf("\n[3/3] Face model\n")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := c.models.EnsureLoaded(ctx); err != nil {
		c.printf("  FAIL: %v\n", err)
		c.printf("  Tried %s and %s\n", c.cfg.Face.ModelSource, c.cfg.Face.FallbackModelSource)
		return false
	}
	c.printf("  PASS: detector ready in %s\n", time.Since(start).Round(time.Millisecond))
	return true
}
