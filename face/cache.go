package face

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moodscan/config"
	"moodscan/log"
	"moodscan/metrics"
	"moodscan/session"
)

// Loader prepares a detector from a model source location.
type Loader func(ctx context.Context, source string) (Detector, error)

// ModelCache loads the detector at most once. Concurrent callers wait on
// the same load; a failed load leaves the cache empty so a later call can
// retry.
type ModelCache struct {
	primary  string
	fallback string
	load     Loader

	mu  sync.Mutex
	det Detector
}

func NewModelCache(primary, fallback string, load Loader) *ModelCache {
	return &ModelCache{primary: primary, fallback: fallback, load: load}
}

var (
	defaultMu    sync.Mutex
	defaultCache *ModelCache
)

// DefaultCache returns the process-wide cache. The first caller's config
// decides the sources.
func DefaultCache(cfg config.Face) *ModelCache {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCache == nil {
		defaultCache = NewModelCache(cfg.ModelSource, cfg.FallbackModelSource, HTTPLoader(cfg.DetectTimeout))
	}
	return defaultCache
}

// EnsureLoaded returns the cached detector, loading it from the primary
// source and then the fallback if needed.
func (c *ModelCache) EnsureLoaded(ctx context.Context) (Detector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.det != nil {
		return c.det, nil
	}

	det, err := c.try(ctx, "primary", c.primary)
	if err != nil && c.fallback != "" {
		var ferr error
		det, ferr = c.try(ctx, "fallback", c.fallback)
		if ferr != nil {
			err = errors.Join(err, ferr)
		} else {
			err = nil
		}
	}
	if err != nil {
		return nil, session.E(session.KindModelLoad, "face.EnsureLoaded", err)
	}
	c.det = det
	return det, nil
}

func (c *ModelCache) try(ctx context.Context, which, source string) (Detector, error) {
	if source == "" {
		return nil, fmt.Errorf("%s model source not configured", which)
	}
	start := time.Now()
	det, err := c.load(ctx, source)
	log.ModelLoad(source, time.Since(start), err)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ModelLoads.WithLabelValues(which, outcome).Inc()
	return det, err
}

func (c *ModelCache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.det != nil
}
