// Package stats uploads crossbreed harvest results to a script webhook.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/observability"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/rs/zerolog/log"
)

const (
	TokenHeader = "AirScript-Token"

	HybridFailed = "Hybrid failed"
	TestSeedName = "Test Seed"

	statusFinished = "finished"
)

var (
	ErrDisabled     = errors.New("stats: webhook url not configured")
	ErrStatus       = errors.New("stats: unexpected http status")
	ErrNotJSON      = errors.New("stats: response is not json")
	ErrScriptFailed = errors.New("stats: script did not finish")
	ErrExhausted    = errors.New("stats: upload attempts exhausted")
)

type Config struct {
	WebhookURL   string
	WebhookToken string
	UserName     string
	Timeout      time.Duration
	Attempts     int
	Backoff      Backoff
}

func DefaultConfig() Config {
	return Config{
		Timeout:  5 * time.Second,
		Attempts: 3,
		Backoff:  Backoff{Step: time.Second},
	}
}

// Result is one crossbreed outcome as the webhook script expects it.
type Result struct {
	Seed   string `json:"seed"`
	Name   string `json:"name"`
	Result string `json:"result"`
}

type requestBody struct {
	Context struct {
		Argv Result `json:"argv"`
	} `json:"Context"`
}

type responseBody struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Reporter posts results in the background. Uploads never block the caller.
type Reporter struct {
	cfg    Config
	data   *gamedata.Source
	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, data *gamedata.Source) *Reporter {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Backoff.Step <= 0 {
		cfg.Backoff = def.Backoff
	}
	cfg.WebhookURL = strings.TrimSpace(cfg.WebhookURL)
	cfg.WebhookToken = strings.TrimSpace(cfg.WebhookToken)

	ctx, cancel := context.WithCancel(context.Background())
	return &Reporter{
		cfg:    cfg,
		data:   data,
		client: &http.Client{Timeout: cfg.Timeout},
		sleep:  sleepContext,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *Reporter) Enabled() bool { return r != nil && r.cfg.WebhookURL != "" }

// Describe logs the harvest and derives the crossbreed result. The hybrid is
// whichever product is not the seed's regular product.
func (r *Reporter) Describe(h packets.HarvestResult) Result {
	d := r.data.Get()
	seedID := d.SeedIDByIndex(h.Result1Seed)
	seedName := d.SeedName(seedID)
	product1, ok1 := d.ItemName(h.Result1ID)
	product2, ok2 := d.ItemName(h.Result2ID)

	if ok2 && h.Result2Count > 0 {
		log.Info().Msgf("stats.Harvest seed=%q products=%s*%d,%s*%d",
			seedName, product1, h.Result1Count, product2, h.Result2Count)
	} else {
		log.Info().Msgf("stats.Harvest seed=%q products=%s*%d", seedName, product1, h.Result1Count)
	}

	hybrid, ok := product1, ok1
	if regular, known := d.SeedProduct(seedID); known && regular == h.Result1ID {
		hybrid, ok = product2, ok2
	}
	if !ok {
		hybrid = HybridFailed
	}
	return Result{Seed: seedName, Name: r.cfg.UserName, Result: hybrid}
}

// UploadResult reports a harvest. Nothing is sent when the reporter is
// disabled, but the harvest is still logged.
func (r *Reporter) UploadResult(h packets.HarvestResult) {
	res := r.Describe(h)
	if !r.Enabled() {
		return
	}
	r.goPost(res)
}

// UploadTest sends a fixed record to check the webhook settings.
func (r *Reporter) UploadTest() {
	if !r.Enabled() {
		log.Warn().Msgf("stats.UploadTest err=%v", ErrDisabled)
		return
	}
	r.goPost(Result{Seed: TestSeedName, Name: r.cfg.UserName, Result: HybridFailed})
}

func (r *Reporter) goPost(res Result) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.Post(r.ctx, res); err != nil {
			log.Warn().Msgf("stats.Upload seed=%q err=%v", res.Seed, err)
		}
	}()
}

// Post uploads synchronously, retrying with the configured backoff.
func (r *Reporter) Post(ctx context.Context, res Result) error {
	if !r.Enabled() {
		return ErrDisabled
	}
	var body requestBody
	body.Context.Argv = res
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("stats: encode: %w", err)
	}
	log.Debug().Msgf("stats.Post body=%s", payload)

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		lastErr = r.postOnce(ctx, payload)
		if lastErr == nil {
			log.Info().Msgf("stats.Post ok seed=%q attempt=%d", res.Seed, attempt)
			observability.RecordStatsUpload(true, time.Since(start))
			return nil
		}
		log.Warn().Msgf("stats.Post attempt=%d/%d err=%v", attempt, r.cfg.Attempts, lastErr)
		if attempt == r.cfg.Attempts {
			break
		}
		if err := r.sleep(ctx, r.cfg.Backoff.Delay(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	observability.RecordStatsUpload(false, time.Since(start))
	return fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

func (r *Reporter) postOnce(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TokenHeader, r.cfg.WebhookToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Msgf("stats.Post status=%d body=%q", resp.StatusCode, raw)
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	if !bytes.HasPrefix(raw, []byte("{")) {
		return ErrNotJSON
	}
	var out responseBody
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if out.Status != statusFinished || out.Error != "" {
		return fmt.Errorf("%w: status=%q error=%q", ErrScriptFailed, out.Status, out.Error)
	}
	return nil
}

// Close cancels pending uploads and waits for them to return.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until in-flight uploads finish.
func (r *Reporter) Wait() { r.wg.Wait() }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
