package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AloysioLvy/radar-intake/internal/conversation"
	"github.com/AloysioLvy/radar-intake/internal/dialogue"
	"github.com/AloysioLvy/radar-intake/internal/events"
	"github.com/AloysioLvy/radar-intake/internal/geocode"
	"github.com/AloysioLvy/radar-intake/internal/ingest"
	"github.com/AloysioLvy/radar-intake/internal/metrics"
	"github.com/AloysioLvy/radar-intake/internal/openai"
	"github.com/AloysioLvy/radar-intake/internal/severity"
	"github.com/AloysioLvy/radar-intake/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeExecutor struct {
	reply string
	err   error
	calls int
}

func (f *fakeExecutor) Next(context.Context, []conversation.Turn) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeEnricher struct {
	loc   geocode.Location
	texts []string
}

func (f *fakeEnricher) Enrich(_ context.Context, text string) geocode.Location {
	f.texts = append(f.texts, text)
	return f.loc
}

type fakeLedger struct {
	subs []store.Submission
	err  error
}

func (f *fakeLedger) RecordSubmission(_ context.Context, sub store.Submission) (uuid.UUID, error) {
	f.subs = append(f.subs, sub)
	return sub.ID, f.err
}

type fakePublisher struct {
	events []events.ReportEvent
}

func (f *fakePublisher) PublishReport(ev events.ReportEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func strPtr(s string) *string { return &s }

const terminalReply = `{"tipo_de_crime": "latrocínio", "data_crime": "10/05/2025", "localizacao": "Rua X, Centro, Campinas"}`

func confirmedLog() []conversation.Turn {
	return []conversation.Turn{
		{Role: conversation.RoleUser, Content: "Quero denunciar um latrocínio"},
		{Role: conversation.RoleAssistant, Content: "Resumo dos dados coletados:\n- Crime: latrocínio\n- Data: 10/05/2025\n- Local: Rua X, Centro, Campinas\nEstá correto? (sim/não)"},
		{Role: conversation.RoleUser, Content: "sim"},
	}
}

func newBackend(t *testing.T, status int, body string, got *[]byte) *ingest.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if got != nil {
			*got = b
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return ingest.NewClient(srv.URL, time.Second, discardLogger())
}

func TestHandle_OrdinaryTurn(t *testing.T) {
	exec := &fakeExecutor{reply: "Qual foi o tipo de crime?"}
	enr := &fakeEnricher{}
	p := New(Deps{Executor: exec, Classifier: severity.Default(), Enricher: enr}, discardLogger())

	out, err := p.Handle(context.Background(), Request{Turns: []conversation.Turn{{Role: "user", Content: "Olá"}}})

	require.NoError(t, err)
	assert.Equal(t, "Qual foi o tipo de crime?", out.Reply)
	assert.Equal(t, conversation.PhaseCollecting, out.Phase)
	assert.Nil(t, out.Report)
	assert.Empty(t, enr.texts, "enrichment must not run for ordinary turns")
}

func TestHandle_SummaryTurn(t *testing.T) {
	exec := &fakeExecutor{reply: "Resumo dos dados coletados:\n- Crime: roubo\nEstá correto? (sim/não)"}
	p := New(Deps{Executor: exec, Classifier: severity.Default(), Enricher: &fakeEnricher{}}, discardLogger())

	out, err := p.Handle(context.Background(), Request{Turns: []conversation.Turn{{Role: "user", Content: "foi um roubo"}}})

	require.NoError(t, err)
	assert.Equal(t, conversation.PhaseAwaitingConfirmation, out.Phase)
}

func TestHandle_TerminalSubmitted(t *testing.T) {
	var posted []byte
	ledger := &fakeLedger{}
	pub := &fakePublisher{}
	enr := &fakeEnricher{loc: geocode.Location{Latitude: strPtr("-22.9"), Longitude: strPtr("-47.06"), AreaLabel: strPtr("Centro")}}
	reg := prometheus.NewRegistry()

	p := New(Deps{
		Executor:   &fakeExecutor{reply: terminalReply},
		Classifier: severity.Default(),
		Enricher:   enr,
		Submitter:  newBackend(t, http.StatusCreated, `{"id": 42}`, &posted),
		Ledger:     ledger,
		Publisher:  pub,
		Metrics:    metrics.NewPipelineMetrics(reg),
	}, discardLogger())

	out, err := p.Handle(context.Background(), Request{RequestID: "req-1", Turns: confirmedLog()})
	require.NoError(t, err)

	assert.Equal(t, conversation.PhaseTerminated, out.Phase)
	assert.Equal(t, []string{"Rua X, Centro, Campinas"}, enr.texts)
	require.NotNil(t, out.Report)
	assert.Equal(t, 9, out.Report.CrimeWeight)
	assert.Equal(t, "latrocínio", out.Report.CrimeName)
	assert.Equal(t, "10/05/2025", out.Report.ReportDate)
	assert.Equal(t, string(posted), string(out.Sent), "data_sent must match the posted body")
	assert.JSONEq(t, `{"id": 42}`, string(out.BackendResponse))

	require.Len(t, ledger.subs, 1)
	assert.Equal(t, store.StatusSubmitted, ledger.subs[0].Status)
	assert.Equal(t, http.StatusCreated, ledger.subs[0].BackendStatus)
	assert.Equal(t, "req-1", ledger.subs[0].RequestID)

	require.Len(t, pub.events, 1)
	assert.True(t, pub.events[0].Submitted)
	assert.Equal(t, events.SubjectReportSubmitted, pub.events[0].Subject())
}

func TestHandle_TerminalNoGeocodeMatchPostsNulls(t *testing.T) {
	var posted []byte
	p := New(Deps{
		Executor:   &fakeExecutor{reply: `{"tipo_de_crime": "furto de bicicleta", "data_crime": "01/02/2025", "localizacao": "lugar nenhum"}`},
		Classifier: severity.Default(),
		Enricher:   &fakeEnricher{},
		Submitter:  newBackend(t, http.StatusOK, `ok`, &posted),
	}, discardLogger())

	out, err := p.Handle(context.Background(), Request{Turns: confirmedLog()})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(posted, &body))
	assert.Nil(t, body["latitude"])
	assert.Nil(t, body["longitude"])
	assert.Nil(t, body["name"])
	assert.EqualValues(t, 3, body["crime_weight"])
	assert.Equal(t, `"ok"`, string(out.BackendResponse))
}

func TestHandle_BackendUnavailable(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("db down")}
	pub := &fakePublisher{}
	p := New(Deps{
		Executor:   &fakeExecutor{reply: terminalReply},
		Classifier: severity.Default(),
		Enricher:   &fakeEnricher{},
		Submitter:  newBackend(t, http.StatusServiceUnavailable, "maintenance", nil),
		Ledger:     ledger,
		Publisher:  pub,
	}, discardLogger())

	out, err := p.Handle(context.Background(), Request{Turns: confirmedLog()})

	assert.Nil(t, out)
	var se *ingest.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Contains(t, string(se.Payload), `"crime_weight":9`)

	require.Len(t, ledger.subs, 1, "ledger failure must not hide the attempt")
	assert.Equal(t, store.StatusFailed, ledger.subs[0].Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.SubjectReportFailed, pub.events[0].Subject())
}

func TestHandle_TerminalWithoutConfirmationStillSubmits(t *testing.T) {
	p := New(Deps{
		Executor:   &fakeExecutor{reply: terminalReply},
		Classifier: severity.Default(),
		Enricher:   &fakeEnricher{},
		Submitter:  newBackend(t, http.StatusOK, `{}`, nil),
	}, discardLogger())

	out, err := p.Handle(context.Background(), Request{Turns: []conversation.Turn{{Role: "user", Content: "latrocínio ontem no Centro"}}})

	require.NoError(t, err)
	assert.Equal(t, conversation.PhaseTerminated, out.Phase)
}

func TestHandle_InvalidConversation(t *testing.T) {
	exec := &fakeExecutor{reply: "x"}
	p := New(Deps{Executor: exec}, discardLogger())

	_, err := p.Handle(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = p.Handle(context.Background(), Request{Turns: []conversation.Turn{{Role: "assistant", Content: "oi"}}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, exec.calls)
}

func TestHandle_ExecutorErrorPropagates(t *testing.T) {
	p := New(Deps{Executor: &fakeExecutor{err: dialogue.ErrMissingCredential}}, discardLogger())

	_, err := p.Handle(context.Background(), Request{Turns: []conversation.Turn{{Role: "user", Content: "oi"}}})

	assert.ErrorIs(t, err, dialogue.ErrMissingCredential)
}

func newSessions(t *testing.T) (*conversation.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return conversation.NewStore(client, time.Hour), mr
}

func TestHandle_SessionStaleRequestRejected(t *testing.T) {
	sessions, _ := newSessions(t)
	exec := &fakeExecutor{reply: "Qual foi a data?"}
	p := New(Deps{Executor: exec, Classifier: severity.Default(), Enricher: &fakeEnricher{}, Sessions: sessions}, discardLogger())
	ctx := context.Background()

	first := []conversation.Turn{{Role: "user", Content: "foi um roubo"}}
	_, err := p.Handle(ctx, Request{SessionID: "s1", Turns: first})
	require.NoError(t, err)

	second := append(append([]conversation.Turn(nil), first...),
		conversation.Turn{Role: "assistant", Content: "Qual foi a data?"},
		conversation.Turn{Role: "user", Content: "ontem"})
	_, err = p.Handle(ctx, Request{SessionID: "s1", Turns: second})
	require.NoError(t, err)

	_, err = p.Handle(ctx, Request{SessionID: "s1", Turns: []conversation.Turn{{Role: "user", Content: "outra coisa"}}})
	assert.ErrorIs(t, err, conversation.ErrStaleSession)
	assert.Equal(t, 2, exec.calls)
}

func TestHandle_SessionClearedOnTermination(t *testing.T) {
	sessions, mr := newSessions(t)
	p := New(Deps{
		Executor:   &fakeExecutor{reply: terminalReply},
		Classifier: severity.Default(),
		Enricher:   &fakeEnricher{},
		Submitter:  newBackend(t, http.StatusOK, `{}`, nil),
		Sessions:   sessions,
	}, discardLogger())

	_, err := p.Handle(context.Background(), Request{SessionID: "s2", Turns: confirmedLog()})

	require.NoError(t, err)
	assert.False(t, mr.Exists("radar:session:s2"))
}

func TestHandle_ClientAbortCancelsModelCall(t *testing.T) {
	release := make(chan struct{})
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer llm.Close()
	defer close(release)

	enr := &fakeEnricher{}
	client := openai.NewClient(openai.Options{APIKey: "k", BaseURL: llm.URL, Timeout: time.Minute})
	p := New(Deps{
		Executor:   dialogue.New(client, discardLogger()),
		Classifier: severity.Default(),
		Enricher:   enr,
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	out, err := p.Handle(ctx, Request{Turns: confirmedLog()})

	assert.Nil(t, out)
	assert.ErrorIs(t, err, dialogue.ErrUpstream)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, enr.texts)
}
