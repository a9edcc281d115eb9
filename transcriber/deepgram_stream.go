package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type streamSessionConfig struct {
	SampleRate int
	Channels   int
	Language   string
	Model      string
	Interim    bool
}

type deepgramStreamResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
}

type deepgramStreamSession struct {
	conn *websocket.Conn
}

func (d *Deepgram) startStream(ctx context.Context, cfg streamSessionConfig) (rawStreamSession, error) {
	endpoint, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, err
	}

	q := endpoint.Query()
	q.Set("model", cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("punctuate", "true")
	q.Set("interim_results", strconv.FormatBool(cfg.Interim))
	if cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	endpoint.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, endpoint.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}
	return &deepgramStreamSession{conn: conn}, nil
}

func (s *deepgramStreamSession) Send(pcm []byte) error {
	return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (s *deepgramStreamSession) CloseSend() error {
	return s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Finalize"}`))
}

func (s *deepgramStreamSession) Recv() (streamUpdate, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return streamUpdate{}, io.EOF
			}
			return streamUpdate{}, err
		}

		var resp deepgramStreamResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return streamUpdate{}, fmt.Errorf("deepgram message: %w", err)
		}
		switch resp.Type {
		case "Results", "":
		case "Error":
			return streamUpdate{}, fmt.Errorf("deepgram: %s", resp.Description)
		default:
			continue // Metadata, SpeechStarted, UtteranceEnd
		}

		transcript := ""
		if len(resp.Channel.Alternatives) > 0 {
			transcript = resp.Channel.Alternatives[0].Transcript
		}
		return streamUpdate{
			Transcript:   strings.TrimSpace(transcript),
			IsFinal:      resp.IsFinal,
			SpeechFinal:  resp.SpeechFinal,
			FromFinalize: resp.FromFinalize,
		}, nil
	}
}

func (s *deepgramStreamSession) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
