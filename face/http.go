package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"slices"
	"strings"
	"time"

	"moodscan/internal/netx"
)

// Models the inference server must report before it is used.
var RequiredModels = []string{"tiny_face_detector", "face_landmark_68", "face_expression"}

type modelsResp struct {
	Models []string `json:"models"`
}

type detectResp struct {
	Detections []Detection `json:"detections"`
}

// HTTPDetector posts JPEG frames to a face inference server.
type HTTPDetector struct {
	base   string
	client *netx.TracedClient
}

// LoadHTTP checks that source serves every required model and returns a
// detector bound to it.
func LoadHTTP(ctx context.Context, source string, timeout time.Duration) (*HTTPDetector, error) {
	d := &HTTPDetector{
		base:   strings.TrimRight(source, "/"),
		client: netx.NewTracedClientTimeout(timeout),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+"/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("models %s: %w", source, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models %s: status %d: %s", source, resp.StatusCode, string(resp.Body))
	}
	var out modelsResp
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("models decode: %w", err)
	}
	for _, m := range RequiredModels {
		if !slices.Contains(out.Models, m) {
			return nil, fmt.Errorf("models %s: %s not available", source, m)
		}
	}
	return d, nil
}

// HTTPLoader adapts LoadHTTP to a Loader.
func HTTPLoader(timeout time.Duration) Loader {
	return func(ctx context.Context, source string) (Detector, error) {
		return LoadHTTP(ctx, source, timeout)
	}
}

func (d *HTTPDetector) Source() string { return d.base }

func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("detect encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+"/detect", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detect status %d: %s", resp.StatusCode, string(resp.Body))
	}
	var out detectResp
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("detect decode: %w", err)
	}
	return out.Detections, nil
}
