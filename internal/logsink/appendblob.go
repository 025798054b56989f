// Package logsink ships slog records to an Azure append blob as JSON lines.
package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type Config struct {
	AccountName string        `json:"account_name"`
	AccountKey  string        `json:"-"`
	Container   string        `json:"container"`
	BlobName    string        `json:"blob_name"` // defaults to BlobPath(now, hostname)
	FlushEvery  time.Duration `json:"flush_every"`
	Level       slog.Level    `json:"level"`
}

// Enabled reports whether a storage account is configured. Without an account key the
// sink falls back to the default Azure credential chain.
func (c Config) Enabled() bool {
	return c.AccountName != "" && c.Container != ""
}

// ErrClosed is returned for records handled after Close.
var ErrClosed = errors.New("logsink: closed")

const flushTimeout = 5 * time.Second

// blobClient is the part of *appendblob.Client the sink uses.
type blobClient interface {
	AppendBlock(ctx context.Context, body io.ReadSeekCloser, o *appendblob.AppendBlockOptions) (appendblob.AppendBlockResponse, error)
	GetProperties(ctx context.Context, o *blob.GetPropertiesOptions) (blob.GetPropertiesResponse, error)
}

type Handler struct {
	cfg    Config
	ab     blobClient
	ch     chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ticker *time.Ticker
	once   sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ slog.Handler = (*Handler)(nil)

func New(ctx context.Context, cfg Config) (*Handler, error) {
	if !cfg.Enabled() {
		return nil, errors.New("AccountName and Container are required")
	}
	if cfg.BlobName == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "unknown"
		}
		cfg.BlobName = BlobPath(time.Now(), host)
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}

	ab, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := ab.Create(ctx, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists) {
		return nil, fmt.Errorf("create append blob %s: %w", cfg.BlobName, err)
	}

	return start(cfg, ab), nil
}

func start(cfg Config, ab blobClient) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		cfg:    cfg,
		ab:     ab,
		ch:     make(chan []byte, 1024),
		ctx:    ctx,
		cancel: cancel,
		ticker: time.NewTicker(cfg.FlushEvery),
	}
	h.wg.Add(1)
	go h.loop()
	return h
}

func newClient(cfg Config) (*appendblob.Client, error) {
	// BlobName may include slashes; don't path-escape it.
	blobURL := "https://" + cfg.AccountName + ".blob.core.windows.net/" +
		url.PathEscape(cfg.Container) + "/" + cfg.BlobName

	if cfg.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("shared key credential: %w", err)
		}
		return appendblob.NewClientWithSharedKeyCredential(blobURL, cred, nil)
	}

	var cred azcore.TokenCredential
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("default azure credential: %w", err)
	}
	return appendblob.NewClient(blobURL, cred, nil)
}

// Ready checks that the blob is reachable.
func (h *Handler) Ready(ctx context.Context) error {
	_, err := h.ab.GetProperties(ctx, nil)
	return err
}

// Close flushes anything buffered and stops the background writer.
func (h *Handler) Close() error {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		h.cancel()
		h.wg.Wait()
		h.ticker.Stop()
	})
	return nil
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.Level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	line, err := encode(r, nil)
	if err != nil {
		return err
	}
	return h.enqueue(line)
}

// enqueue hands a line to the writer. Close waits for in-flight calls, so every line
// accepted here is drained before the final flush.
func (h *Handler) enqueue(line []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	select {
	case h.ch <- line:
		return nil
	case <-h.ctx.Done():
		return ErrClosed
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &withAttrs{Handler: h, attrs: attrs}
}

func (h *Handler) WithGroup(string) slog.Handler { return h } // groups are flattened

func (h *Handler) loop() {
	defer h.wg.Done()
	var buf []byte
	// appends run on their own deadline so Close never cancels one in flight
	flush := func() {
		if len(buf) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if _, err := h.ab.AppendBlock(ctx, readSeekNopCloser{bytes.NewReader(buf)}, nil); err != nil {
			fmt.Fprintf(os.Stderr, "logsink: append failed: %v\n", err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-h.ctx.Done():
			// drain what Handle already queued
			for {
				select {
				case line := <-h.ch:
					buf = append(buf, line...)
				default:
					flush()
					return
				}
			}
		case line := <-h.ch:
			buf = append(buf, line...)
		case <-h.ticker.C:
			flush()
		}
	}
}

// encode renders a record as one JSON line. Group attrs go one level deep.
func encode(r slog.Record, extra []slog.Attr) ([]byte, error) {
	ev := make(map[string]any, r.NumAttrs()+len(extra)+3)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ev["time"] = ts.UTC().Format(time.RFC3339Nano)
	ev["level"] = r.Level.String()
	ev["msg"] = r.Message

	add := func(a slog.Attr) bool {
		a.Value = a.Value.Resolve()
		if a.Value.Kind() == slog.KindGroup {
			m := map[string]any{}
			for _, aa := range a.Value.Group() {
				aa.Value = aa.Value.Resolve()
				m[aa.Key] = aa.Value.Any()
			}
			ev[a.Key] = m
			return true
		}
		if err, ok := a.Value.Any().(error); ok {
			ev[a.Key] = err.Error()
			return true
		}
		ev[a.Key] = a.Value.Any()
		return true
	}
	for _, a := range extra {
		add(a)
	}
	r.Attrs(add)

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

type withAttrs struct {
	*Handler
	attrs []slog.Attr
}

func (w *withAttrs) Handle(_ context.Context, r slog.Record) error {
	line, err := encode(r, w.attrs)
	if err != nil {
		return err
	}
	return w.enqueue(line)
}

func (w *withAttrs) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &withAttrs{Handler: w.Handler, attrs: append(append([]slog.Attr{}, w.attrs...), attrs...)}
}

type readSeekNopCloser struct{ io.ReadSeeker }

func (r readSeekNopCloser) Close() error { return nil }
