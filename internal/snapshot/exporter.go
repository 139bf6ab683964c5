// Package snapshot periodically exports the dashboard state to S3 for
// policy-change audit archives. The exporter subscribes to the store,
// remembers only the latest snapshot and uploads it on a ticker, so export
// frequency is decoupled from dispatch frequency.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/secdash/secdash/pkg/dashboard"
)

// Uploader is the slice of the S3 API the exporter needs.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures an Exporter.
type Config struct {
	// Bucket is the destination S3 bucket.
	Bucket string

	// Prefix is the object key prefix; keys are
	// <prefix>/<RFC3339 timestamp>.json.
	Prefix string

	// Interval is the export period.
	Interval time.Duration

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Exporter uploads dashboard-state snapshots on a ticker.
type Exporter struct {
	uploader Uploader
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	pending []byte

	unsubscribe func()
	stop        chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
}

// New creates an exporter writing to the given uploader. Use
// s3.NewFromConfig for the real client.
func New(uploader Uploader, cfg Config) (*Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("snapshot: bucket is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("snapshot: interval must be positive, got %v", cfg.Interval)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		uploader: uploader,
		cfg:      cfg,
		logger:   logger.With("component", "snapshot"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start subscribes to the dashboard store and begins the export loop.
func (e *Exporter) Start(dash *dashboard.Dashboard) {
	e.unsubscribe = dash.Store().Subscribe(func(state dashboard.State) {
		buf, err := json.Marshal(state)
		if err != nil {
			e.logger.Error("snapshot encode failed", "error", err)
			return
		}
		e.mu.Lock()
		e.pending = buf
		e.mu.Unlock()
	})

	go e.run()
}

// Stop halts the loop and flushes a final snapshot when one is pending.
// Safe to call more than once; shutdown paths overlap on signal plus
// server-close.
func (e *Exporter) Stop(ctx context.Context) {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.stopOnce.Do(func() { close(e.stop) })
	select {
	case <-e.done:
	case <-ctx.Done():
	}
	e.export(ctx)
}

func (e *Exporter) run() {
	defer close(e.done)
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.export(context.Background())
		case <-e.stop:
			return
		}
	}
}

// export uploads the pending snapshot, if any. The pending buffer is cleared
// only on success so a transient S3 failure retries next tick.
func (e *Exporter) export(ctx context.Context) {
	e.mu.Lock()
	buf := e.pending
	e.mu.Unlock()
	if buf == nil {
		return
	}

	key := fmt.Sprintf("%s/%s.json", e.cfg.Prefix, time.Now().UTC().Format(time.RFC3339))
	_, err := e.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		e.logger.Error("snapshot upload failed", "bucket", e.cfg.Bucket, "key", key, "error", err)
		return
	}

	e.mu.Lock()
	if bytes.Equal(e.pending, buf) {
		e.pending = nil
	}
	e.mu.Unlock()

	e.logger.Info("snapshot exported", "bucket", e.cfg.Bucket, "key", key, "bytes", len(buf))
}
