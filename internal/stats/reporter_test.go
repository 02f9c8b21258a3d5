package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
)

func sampleData() *gamedata.Source {
	return gamedata.NewSource(gamedata.New(gamedata.Tables{
		Seeds: []gamedata.SeedInfo{
			{Index: 7, Seed: gamedata.Item{ID: 7715, Name: "Mandrake Seeds"}, Item: gamedata.Item{ID: 7591, Name: "Mandrake"}},
			{Index: 8, Seed: gamedata.Item{ID: 7716, Name: "Apricot Seeds"}, Item: gamedata.Item{ID: 4783, Name: "Apricot"}},
		},
	}))
}

func TestBackoffIsLinear(t *testing.T) {
	b := Backoff{Step: time.Second}
	for attempt, want := range map[int]time.Duration{0: 0, 1: time.Second, 2: 2 * time.Second, 3: 3 * time.Second} {
		if got := b.Delay(attempt); got != want {
			t.Fatalf("delay(%d)=%v want %v", attempt, got, want)
		}
	}
	if got := (Backoff{Step: time.Second, Max: 1500 * time.Millisecond}).Delay(3); got != 1500*time.Millisecond {
		t.Fatalf("capped delay=%v", got)
	}
}

func TestDescribePicksHybrid(t *testing.T) {
	testlog.Start(t)
	r := New(Config{UserName: "Alisaie"}, sampleData())

	// first product is the seed's own product, so the second is the hybrid
	res := r.Describe(packets.HarvestResult{Result1ID: 7591, Result1Count: 1, Result1Seed: 7, Result2ID: 7716, Result2Count: 1})
	if res.Seed != "Mandrake Seeds" || res.Result != "Apricot Seeds" || res.Name != "Alisaie" {
		t.Fatalf("describe: %+v", res)
	}

	res = r.Describe(packets.HarvestResult{Result1ID: 7716, Result1Count: 1, Result1Seed: 7})
	if res.Result != "Apricot Seeds" {
		t.Fatalf("first product should be the hybrid: %+v", res)
	}

	res = r.Describe(packets.HarvestResult{Result1ID: 7591, Result1Count: 2, Result1Seed: 7})
	if res.Result != HybridFailed {
		t.Fatalf("missing second product must report failure: %+v", res)
	}
}

func TestPostRetriesThenSucceeds(t *testing.T) {
	testlog.Start(t)
	var calls atomic.Int32
	var got requestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		n := calls.Add(1)
		if req.Header.Get(TokenHeader) != "secret" {
			t.Errorf("token header=%q", req.Header.Get(TokenHeader))
		}
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewDecoder(req.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":"finished","error":""}`))
	}))
	defer srv.Close()

	r := New(Config{WebhookURL: " " + srv.URL + " ", WebhookToken: "secret\n", UserName: "Y'shtola"}, sampleData())
	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	if err := r.Post(context.Background(), Result{Seed: "Mandrake Seeds", Name: "Y'shtola", Result: "Apricot Seeds"}); err != nil {
		t.Fatalf("post: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("delays=%v", delays)
	}
	if got.Context.Argv.Result != "Apricot Seeds" || got.Context.Argv.Name != "Y'shtola" {
		t.Fatalf("request body=%+v", got)
	}
}

func TestPostRejectsBadResponses(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		body string
		want error
	}{
		{"<html>", ErrNotJSON},
		{`{"status":"error","error":"quota"}`, ErrScriptFailed},
		{`{"status":"finished","error":"boom"}`, ErrScriptFailed},
	}
	for _, c := range cases {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(c.body))
		}))
		r := New(Config{WebhookURL: srv.URL}, sampleData())
		r.sleep = func(context.Context, time.Duration) error { return nil }

		err := r.Post(context.Background(), Result{Seed: "x"})
		srv.Close()
		if !errors.Is(err, ErrExhausted) || !errors.Is(err, c.want) {
			t.Fatalf("body %q: err=%v", c.body, err)
		}
		if calls.Load() != 3 {
			t.Fatalf("body %q: attempts=%d", c.body, calls.Load())
		}
	}
}

func TestDisabledReporterSendsNothing(t *testing.T) {
	testlog.Start(t)
	r := New(Config{}, sampleData())
	if r.Enabled() {
		t.Fatalf("empty url must disable")
	}
	r.UploadResult(packets.HarvestResult{Result1ID: 7591, Result1Seed: 7})
	r.UploadTest()
	r.Wait()
	if err := r.Post(context.Background(), Result{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected disabled, got %v", err)
	}
}

func TestUploadTestRunsInBackground(t *testing.T) {
	testlog.Start(t)
	var mu sync.Mutex
	var got requestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		_ = json.NewDecoder(req.Body).Decode(&got)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"finished","error":""}`))
	}))
	defer srv.Close()

	r := New(Config{WebhookURL: srv.URL, UserName: "Thancred"}, sampleData())
	r.UploadTest()
	r.Wait()
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	if got.Context.Argv.Seed != TestSeedName || got.Context.Argv.Result != HybridFailed || got.Context.Argv.Name != "Thancred" {
		t.Fatalf("test upload body=%+v", got)
	}
}
