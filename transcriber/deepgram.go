package transcriber

import (
	"context"
	"strings"
	"time"

	"moodscan/internal/netx"
)

const (
	deepgramStreamURL = "wss://api.deepgram.com/v1/listen"
	deepgramWarmURL   = "https://api.deepgram.com"
	deepgramModel     = "nova-2"
)

type Deepgram struct {
	baseTranscriber
	apiKey   string
	endpoint string
	model    string
	client   *netx.TracedClient
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		baseTranscriber: baseTranscriber{lang: "es-ES"},
		apiKey:          apiKey,
		endpoint:        deepgramStreamURL,
		model:           deepgramModel,
		client:          netx.NewTracedClient(),
	}
}

// WithEndpoint points the streaming socket elsewhere (tests, proxies).
func (d *Deepgram) WithEndpoint(url string) *Deepgram {
	d.endpoint = url
	return d
}

func (d *Deepgram) Name() string { return "deepgram" }

// WarmConnection pre-resolves DNS and TLS so the first session starts fast.
func (d *Deepgram) WarmConnection() time.Duration {
	return d.client.WarmConnection(deepgramWarmURL)
}

func (d *Deepgram) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	if cfg.Language == "" {
		cfg.Language = d.GetLanguage()
	}
	sc := streamSessionConfig{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Language:   deepgramLanguage(cfg.Language),
		Model:      d.model,
		Interim:    cfg.Interim,
	}
	return newStreamSession(cfg, func() (rawStreamSession, error) {
		return d.startStream(ctx, sc)
	}), nil
}

// deepgramLanguage maps a BCP 47 tag onto Deepgram's language codes, which
// carry a region only for English and Portuguese variants.
func deepgramLanguage(tag string) string {
	tag = strings.ReplaceAll(tag, "_", "-")
	primary, region, ok := strings.Cut(tag, "-")
	primary = strings.ToLower(primary)
	if !ok {
		return primary
	}
	switch primary {
	case "en", "pt":
		return primary + "-" + strings.ToUpper(region)
	}
	return primary
}
