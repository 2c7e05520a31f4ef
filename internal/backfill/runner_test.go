package backfill

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AloysioLvy/radar-intake/internal/ingest"
	"github.com/AloysioLvy/radar-intake/internal/severity"
	"github.com/AloysioLvy/radar-intake/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const crimesFile = `[
  {"crime_name": "latrocínio", "crime_weight": 7, "latitude": "-22.9056", "longitude": "-47.0608", "name": "Centro", "report_date": "05/03/2023"},
  {"crime_name": "furto de bicicleta", "latitude": -22.8989, "longitude": -47.0523, "name": "Cambuí", "report_date": "2023-04-11"},
  {"crime_name": "roubo", "latitude": null, "longitude": null, "name": "", "report_date": "01/01/2024"}
]`

type backend struct {
	mu     sync.Mutex
	bodies []map[string]any
	fail   map[string]bool
}

func (b *backend) handler(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.bodies = append(b.bodies, body)
	fail := b.fail[body["crime_name"].(string)]
	b.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (b *backend) posts() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.bodies...)
}

func (b *backend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

type fakeLedger struct {
	subs []store.Submission
}

func (f *fakeLedger) RecordSubmission(_ context.Context, sub store.Submission) (uuid.UUID, error) {
	f.subs = append(f.subs, sub)
	return uuid.New(), nil
}

func setup(t *testing.T, b *backend) (Config, *ingest.Client) {
	t.Helper()
	return setupWith(t, b, crimesFile)
}

func setupWith(t *testing.T, b *backend, content string) (Config, *ingest.Client) {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "crimes.json")
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(b.handler))
	t.Cleanup(srv.Close)
	cfg := Config{File: file, StatePath: filepath.Join(dir, "state.json")}
	return cfg, ingest.NewClient(srv.URL, time.Second, discardLogger())
}

func TestRun_SubmitsAllAndRecomputesWeight(t *testing.T) {
	b := &backend{}
	cfg, client := setup(t, b)
	ledger := &fakeLedger{}
	var out bytes.Buffer

	state, err := NewRunner(cfg, client, severity.Default(), ledger, &out, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	posts := b.posts()
	if state.Submitted != 3 || state.Failed != 0 || state.RecordsRemaining != 0 {
		t.Errorf("unexpected state: %+v", state)
	}
	if state.Heinous != 1 {
		t.Errorf("expected 1 heinous record, got %d", state.Heinous)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	if w := posts[0]["crime_weight"]; w != float64(9) {
		t.Errorf("latrocínio with invalid file weight = %v, want recomputed 9", w)
	}
	if lt := posts[0]["location_text"]; lt != "" {
		t.Errorf("location_text should stay empty for area-only records, got %v", lt)
	}
	if w := posts[1]["crime_weight"]; w != float64(3) {
		t.Errorf("furto de bicicleta weight = %v, want 3", w)
	}
	if d := posts[1]["report_date"]; d != "11/04/2023" {
		t.Errorf("report_date = %v, want normalized 11/04/2023", d)
	}
	if lat := posts[1]["latitude"]; lat != "-22.8989" {
		t.Errorf("numeric latitude should be sent as string, got %v", lat)
	}
	if posts[2]["latitude"] != nil || posts[2]["name"] != nil {
		t.Errorf("empty location should be null: %v", posts[2])
	}
	if len(ledger.subs) != 3 || ledger.subs[0].Status != store.StatusSubmitted {
		t.Errorf("ledger not written: %+v", ledger.subs)
	}
	if !bytes.Contains(out.Bytes(), []byte("Submitted: 3")) {
		t.Errorf("summary missing: %s", out.String())
	}
}

func TestRun_KeepsValidFileWeight(t *testing.T) {
	b := &backend{}
	cfg, client := setupWith(t, b, `[
  {"crime_name": "Homicídio Doloso por Acidente de Trânsito", "crime_weight": 9, "name": "Centro", "report_date": "05/03/2023"},
  {"crime_name": "latrocínio", "crime_weight": 3, "name": "Centro", "report_date": "06/03/2023"},
  {"crime_name": "latrocínio", "name": "Centro", "report_date": "07/03/2023"}
]`)

	state, err := NewRunner(cfg, client, severity.Default(), nil, io.Discard, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	posts := b.posts()
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	want := []float64{9, 3, 9}
	for i, w := range want {
		if got := posts[i]["crime_weight"]; got != w {
			t.Errorf("record %d: crime_weight = %v, want %v", i, got, w)
		}
	}
	if state.Heinous != 2 {
		t.Errorf("expected 2 heinous records, got %d", state.Heinous)
	}
}

func TestRecord_FileWeight(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{"9", 9, true},
		{"3", 3, true},
		{"7", 0, false},
		{"", 0, false},
		{"9.5", 0, false},
	}
	for _, tt := range tests {
		got, ok := Record{Weight: json.Number(tt.raw)}.FileWeight()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FileWeight(%q) = %d, %t; want %d, %t", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRun_ResumesAfterFailure(t *testing.T) {
	b := &backend{fail: map[string]bool{"roubo": true}}
	cfg, client := setup(t, b)

	state, err := NewRunner(cfg, client, severity.Default(), nil, io.Discard, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if state.Submitted != 2 || state.Failed != 1 || state.RecordsRemaining != 1 {
		t.Fatalf("unexpected state after first run: %+v", state)
	}

	b.reset()
	state, err = NewRunner(cfg, client, severity.Default(), nil, io.Discard, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(b.posts()) != 1 || b.posts()[0]["crime_name"] != "roubo" {
		t.Errorf("second run should only resend the failed record, got %v", b.posts())
	}
	if state.RecordsRemaining != 0 || state.Submitted != 3 {
		t.Errorf("unexpected state after resume: %+v", state)
	}
}

func TestRun_DryRunAndLimit(t *testing.T) {
	b := &backend{}
	cfg, client := setup(t, b)
	cfg.DryRun = true
	cfg.Limit = 2

	state, err := NewRunner(cfg, client, severity.Default(), nil, io.Discard, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(b.posts()) != 0 {
		t.Errorf("dry run must not post, got %d", len(b.posts()))
	}
	if len(state.RecordsProcessed) != 0 {
		t.Errorf("dry run must not mark records processed")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	b := &backend{}
	cfg, client := setup(t, b)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(cfg, client, severity.Default(), nil, io.Discard, discardLogger()).Run(ctx)
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(b.posts()) != 0 {
		t.Errorf("expected no posts, got %d", len(b.posts()))
	}
}

func TestLoadRecords_Missing(t *testing.T) {
	if _, err := LoadRecords(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
