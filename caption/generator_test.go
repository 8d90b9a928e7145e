package caption

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeBackend struct {
	calls   int
	errs    []error
	resp    *Response
	lastReq Request
}

func (f *fakeBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	f.lastReq = req
	if i := f.calls - 1; i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.resp, nil
}

type fakeQuota struct {
	allow      bool
	message    string
	checkErr   error
	increments int
}

func (q *fakeQuota) CanMakeRequest(ctx context.Context) (bool, string, error) {
	return q.allow, q.message, q.checkErr
}

func (q *fakeQuota) IncrementUsage(ctx context.Context) error {
	q.increments++
	return nil
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatus() int { return int(e) }

func okResponse() *Response {
	return &Response{
		Captions: []RemoteCaption{
			{Title: "Rise and run", Caption: "Mornings hit different.", CTA: "Tag your running buddy", Tags: "#fitness  running #morningrun ## "},
			{Title: "Miles before coffee", Caption: "5k done.", CTA: "Follow for more", Tags: "fitness"},
		},
		RequestsRemaining: 4,
	}
}

func scenarioRequest() Request {
	return Request{Tone: "casual", Platform: "instagram", Niche: "fitness", Goal: "grow-audience", PostIdea: "morning run"}
}

func newTestGenerator(b Backend, q Quota, s *recordingSleeper) *Generator {
	p := DefaultRetryPolicy()
	p.Sleep = s.Sleep
	return NewGenerator(b, q, WithRetryPolicy(p))
}

func TestGenerate_ScenarioQuotaAvailable(t *testing.T) {
	backend := &fakeBackend{resp: okResponse()}
	quota := &fakeQuota{allow: true}
	g := newTestGenerator(backend, quota, &recordingSleeper{})

	captions, err := g.Generate(context.Background(), scenarioRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(captions) < 1 {
		t.Fatal("Generate() returned no captions")
	}
	if quota.increments != 1 {
		t.Errorf("increments = %d, want 1", quota.increments)
	}
	if backend.calls != 1 {
		t.Errorf("backend calls = %d, want 1", backend.calls)
	}
	if g.LastRemaining() != 4 {
		t.Errorf("LastRemaining() = %d, want 4", g.LastRemaining())
	}

	for _, c := range captions {
		for _, tag := range c.Tags {
			if tag == "" || strings.HasPrefix(tag, "#") {
				t.Errorf("caption %q has bad tag %q", c.Title, tag)
			}
		}
	}
	want := []string{"fitness", "running", "morningrun"}
	if got := captions[0].Tags; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestGenerate_ScenarioQuotaExhausted(t *testing.T) {
	backend := &fakeBackend{resp: okResponse()}
	quota := &fakeQuota{allow: false, message: "Daily limit of 20 captions reached."}
	g := newTestGenerator(backend, quota, &recordingSleeper{})

	_, err := g.Generate(context.Background(), scenarioRequest())
	if !IsKind(err, KindQuotaExceeded) {
		t.Fatalf("Generate() error = %v, want quota exceeded", err)
	}
	if UserMessage(err) != quota.message {
		t.Errorf("message = %q, want %q", UserMessage(err), quota.message)
	}
	if backend.calls != 0 {
		t.Errorf("backend calls = %d, want 0", backend.calls)
	}
	if quota.increments != 0 {
		t.Errorf("increments = %d, want 0", quota.increments)
	}
}

func TestGenerate_QuotaDefaultMessage(t *testing.T) {
	g := newTestGenerator(&fakeBackend{resp: okResponse()}, &fakeQuota{allow: false}, &recordingSleeper{})
	_, err := g.Generate(context.Background(), scenarioRequest())
	if UserMessage(err) != defaultQuotaMessage {
		t.Errorf("message = %q, want default", UserMessage(err))
	}
}

func TestGenerate_RetriesTransientWithBackoff(t *testing.T) {
	transient := errors.New("dial tcp: connection refused")
	backend := &fakeBackend{errs: []error{transient, transient, transient, transient}, resp: okResponse()}
	quota := &fakeQuota{allow: true}
	sleeper := &recordingSleeper{}
	g := newTestGenerator(backend, quota, sleeper)

	_, err := g.Generate(context.Background(), scenarioRequest())
	if err == nil {
		t.Fatal("Generate() should fail after retries are exhausted")
	}
	if !IsKind(err, KindTerminal) {
		t.Errorf("kind = %v, want terminal after exhaustion", KindOf(err))
	}
	if !errors.Is(err, transient) {
		t.Errorf("error chain should wrap the transient cause: %v", err)
	}
	if backend.calls != 3 {
		t.Errorf("backend calls = %d, want 3 (1 + 2 retries)", backend.calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", sleeper.delays, want)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, sleeper.delays[i], want[i])
		}
	}
	if quota.increments != 0 {
		t.Errorf("increments = %d, want 0", quota.increments)
	}
}

func TestGenerate_RecoversAfterTransient(t *testing.T) {
	backend := &fakeBackend{errs: []error{statusErr(503)}, resp: okResponse()}
	quota := &fakeQuota{allow: true}
	sleeper := &recordingSleeper{}
	g := newTestGenerator(backend, quota, sleeper)

	captions, err := g.Generate(context.Background(), scenarioRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(captions) != 2 {
		t.Errorf("captions = %d, want 2", len(captions))
	}
	if backend.calls != 2 || len(sleeper.delays) != 1 {
		t.Errorf("calls = %d, sleeps = %d, want 2 and 1", backend.calls, len(sleeper.delays))
	}
	if quota.increments != 1 {
		t.Errorf("increments = %d, want 1", quota.increments)
	}
}

func TestGenerate_TerminalNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad request", statusErr(400)},
		{"forbidden", statusErr(403)},
		{"parse", Terminal("malformed response", errors.New("invalid character"))},
		{"quota from server", QuotaExceeded("no more requests")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{errs: []error{tt.err}, resp: okResponse()}
			quota := &fakeQuota{allow: true}
			sleeper := &recordingSleeper{}
			g := newTestGenerator(backend, quota, sleeper)

			_, err := g.Generate(context.Background(), scenarioRequest())
			if err == nil {
				t.Fatal("Generate() should fail")
			}
			if backend.calls != 1 {
				t.Errorf("backend calls = %d, want 1", backend.calls)
			}
			if len(sleeper.delays) != 0 {
				t.Errorf("sleeps = %v, want none", sleeper.delays)
			}
			if quota.increments != 0 {
				t.Errorf("increments = %d, want 0", quota.increments)
			}
		})
	}
}

func TestGenerate_EmptyResponseIsTerminal(t *testing.T) {
	quota := &fakeQuota{allow: true}
	g := newTestGenerator(&fakeBackend{resp: &Response{}}, quota, &recordingSleeper{})
	_, err := g.Generate(context.Background(), scenarioRequest())
	if !IsKind(err, KindTerminal) {
		t.Errorf("error = %v, want terminal", err)
	}
	if quota.increments != 0 {
		t.Errorf("increments = %d, want 0", quota.increments)
	}
}

func TestGenerate_NilResponseIsTerminal(t *testing.T) {
	quota := &fakeQuota{allow: true}
	backend := &fakeBackend{}
	g := newTestGenerator(backend, quota, &recordingSleeper{})
	_, err := g.Generate(context.Background(), scenarioRequest())
	if !IsKind(err, KindTerminal) {
		t.Errorf("error = %v, want terminal", err)
	}
	if backend.calls != 1 {
		t.Errorf("calls = %d, want 1", backend.calls)
	}
	if quota.increments != 0 {
		t.Errorf("increments = %d, want 0", quota.increments)
	}
}

func TestGenerate_Validation(t *testing.T) {
	backend := &fakeBackend{resp: okResponse()}
	g := newTestGenerator(backend, &fakeQuota{allow: true}, &recordingSleeper{})

	req := scenarioRequest()
	req.Goal = "  "
	_, err := g.Generate(context.Background(), req)
	if !IsKind(err, KindTerminal) || !strings.Contains(err.Error(), "goal") {
		t.Errorf("error = %v, want terminal goal validation", err)
	}
	if backend.calls != 0 {
		t.Errorf("backend calls = %d, want 0", backend.calls)
	}
}

func TestGenerate_PostIdeaDefaultsToNiche(t *testing.T) {
	backend := &fakeBackend{resp: okResponse()}
	g := newTestGenerator(backend, nil, &recordingSleeper{})

	req := scenarioRequest()
	req.PostIdea = ""
	if _, err := g.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if backend.lastReq.PostIdea != "fitness" {
		t.Errorf("PostIdea = %q, want niche", backend.lastReq.PostIdea)
	}
}

func TestGenerate_QuotaCheckError(t *testing.T) {
	backend := &fakeBackend{resp: okResponse()}
	g := newTestGenerator(backend, &fakeQuota{checkErr: errors.New("redis down")}, &recordingSleeper{})
	_, err := g.Generate(context.Background(), scenarioRequest())
	if !IsKind(err, KindTerminal) {
		t.Errorf("error = %v, want terminal", err)
	}
	if backend.calls != 0 {
		t.Errorf("backend calls = %d, want 0", backend.calls)
	}
}
