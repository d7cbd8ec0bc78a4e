package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ilyalazarenkoit/eltis-test/internal/app"
	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
	"github.com/ilyalazarenkoit/eltis-test/internal/infra/memory"
)

func testCatalog() *memory.Catalog {
	return memory.NewCatalog([]domain.Question{
		{ID: 1, Kind: domain.KindListening, Options: []string{"A", "B"}, CorrectOption: 0},
		{ID: 2, Kind: domain.KindReading, Options: []string{"X", "Y"}, CorrectOption: 1},
	})
}

func newTestService(t *testing.T) (*app.AssessmentService, domain.Participant) {
	t.Helper()
	service := app.NewAssessmentService(memory.NewParticipantStore(), testCatalog(), nil)
	p, questions, err := service.Register(context.Background(), "Alice Smith", "alice@example.com", "+1 234 567 8901")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	return service, p
}

func TestScoringFlow(t *testing.T) {
	ctx := context.Background()
	service, p := newTestService(t)

	res, err := service.Submit(ctx, p.ID, 1, "A")
	if err != nil {
		t.Fatalf("submit listening: %v", err)
	}
	if !res.IsCorrect || res.ListeningScore != 1 || res.ScorePercent != 50 {
		t.Fatalf("listening answer: got %+v", res)
	}
	if res.CurrentStep != 1 || !res.HasStarted || res.Completed {
		t.Fatalf("after first answer: got %+v", res)
	}

	res, err = service.Submit(ctx, p.ID, 2, "X") // wrong option
	if err != nil {
		t.Fatalf("submit reading: %v", err)
	}
	if res.IsCorrect || res.ReadingScore != 0 || res.ScorePercent != 50 {
		t.Fatalf("reading answer: got %+v", res)
	}
	if !res.Completed || res.CurrentStep != 3 || res.AnswersCount != 2 {
		t.Fatalf("after last answer: got %+v", res)
	}

	stored, err := service.Participant(ctx, p.ID)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if stored.CompletedAt == nil {
		t.Fatalf("expected completedAt stamped")
	}
	if len(stored.Answers) != 2 || len(stored.CorrectQuestionIDs) != 1 {
		t.Fatalf("stored aggregate: answers=%d correct=%d", len(stored.Answers), len(stored.CorrectQuestionIDs))
	}
}

func TestSubmitIdempotent(t *testing.T) {
	ctx := context.Background()
	service, p := newTestService(t)

	first, err := service.Submit(ctx, p.ID, 1, "A")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.AlreadyAnswered {
		t.Fatalf("first submission flagged as replay")
	}

	// A replay with a different (even wrong) text must not re-score.
	replay, err := service.Submit(ctx, p.ID, 1, "B")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replay.AlreadyAnswered {
		t.Fatalf("expected replay flag")
	}
	if replay.IsCorrect != first.IsCorrect {
		t.Fatalf("replay correctness %v, original %v", replay.IsCorrect, first.IsCorrect)
	}
	if replay.AnswersCount != first.AnswersCount ||
		replay.ScorePercent != first.ScorePercent ||
		replay.ListeningScore != first.ListeningScore ||
		replay.ReadingScore != first.ReadingScore {
		t.Fatalf("replay changed aggregates: first=%+v replay=%+v", first, replay)
	}
}

func TestSubmitUnknownOptionRecordedIncorrect(t *testing.T) {
	ctx := context.Background()
	service, p := newTestService(t)

	res, err := service.Submit(ctx, p.ID, 1, "not an option")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.IsCorrect {
		t.Fatalf("unmatched text scored correct")
	}
	if res.AnswersCount != 1 {
		t.Fatalf("expected the answer recorded, got count %d", res.AnswersCount)
	}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	service, p := newTestService(t)

	if _, err := service.Submit(ctx, p.ID, 1, "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty answer: got %v", err)
	}
	if _, err := service.Submit(ctx, p.ID, 99, "A"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("unknown question: got %v", err)
	}
	if _, err := service.Submit(ctx, "b2c7a0e2-98be-4a4e-9d9b-52b3a6a5c4f1", 1, "A"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("unknown participant: got %v", err)
	}
}

func TestStepNeverRegresses(t *testing.T) {
	ctx := context.Background()
	service, p := newTestService(t)

	// Reading first: step jumps straight to 2.
	res, err := service.Submit(ctx, p.ID, 2, "Y")
	if err != nil {
		t.Fatalf("submit reading: %v", err)
	}
	if res.CurrentStep != 2 {
		t.Fatalf("expected step 2 after reading-first answer, got %d", res.CurrentStep)
	}

	// A listening answer afterwards completes the 2-question test; the step
	// moves forward to 3, never back to 1.
	res, err = service.Submit(ctx, p.ID, 1, "B")
	if err != nil {
		t.Fatalf("submit listening: %v", err)
	}
	if res.CurrentStep != 3 || !res.Completed {
		t.Fatalf("expected completion, got %+v", res)
	}
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	ctx := context.Background()
	service, p := newTestService(t)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]domain.SubmitResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.Submit(ctx, p.ID, 1, "A")
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if !results[i].AlreadyAnswered {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("expected exactly one scoring effect, got %d", fresh)
	}

	stored, err := service.Participant(ctx, p.ID)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if len(stored.Answers) != 1 || stored.ListeningScore != 1 {
		t.Fatalf("duplicate records: answers=%d listening=%d", len(stored.Answers), stored.ListeningScore)
	}
}

// conflictingStore injects a bounded number of write conflicts before
// delegating to the real store.
type conflictingStore struct {
	app.ParticipantStore
	mu        sync.Mutex
	conflicts int
}

func (s *conflictingStore) Update(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	inject := s.conflicts > 0
	if inject {
		s.conflicts--
	}
	s.mu.Unlock()
	if inject {
		return domain.Participant{}, domain.ErrWriteConflict
	}
	return s.ParticipantStore.Update(ctx, p)
}

func TestSubmitRetriesOnWriteConflict(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{ParticipantStore: memory.NewParticipantStore(), conflicts: 2}
	service := app.NewAssessmentService(store, testCatalog(), nil)
	p, _, err := service.Register(ctx, "Bob Jones", "bob@example.com", "+1 234 567 8902")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := service.Submit(ctx, p.ID, 1, "A")
	if err != nil {
		t.Fatalf("expected transparent retry, got %v", err)
	}
	if !res.IsCorrect || res.AnswersCount != 1 {
		t.Fatalf("unexpected result after retries: %+v", res)
	}
}

func TestSubmitSurfacesExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{ParticipantStore: memory.NewParticipantStore(), conflicts: 100}
	service := app.NewAssessmentService(store, testCatalog(), nil)
	p, _, err := service.Register(ctx, "Bob Jones", "bob@example.com", "+1 234 567 8902")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := service.Submit(ctx, p.ID, 1, "A"); !errors.Is(err, domain.ErrWriteConflict) {
		t.Fatalf("expected surfaced conflict, got %v", err)
	}
	// Failure must leave the aggregate untouched.
	stored, err := service.Participant(ctx, p.ID)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if len(stored.Answers) != 0 {
		t.Fatalf("failed submit left %d answers", len(stored.Answers))
	}
}

func TestUpdateNavigation(t *testing.T) {
	ctx := context.Background()
	service, p := newTestService(t)

	started := true
	step := 2
	updated, err := service.UpdateNavigation(ctx, p.ID, app.NavigationUpdate{HasStarted: &started, CurrentStep: &step})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.HasStarted || updated.CurrentStep != 2 {
		t.Fatalf("got %+v", updated)
	}

	// Steps never move backwards through the patch path.
	back := 1
	updated, err = service.UpdateNavigation(ctx, p.ID, app.NavigationUpdate{CurrentStep: &back})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CurrentStep != 2 {
		t.Fatalf("step regressed to %d", updated.CurrentStep)
	}

	bad := 7
	if _, err := service.UpdateNavigation(ctx, p.ID, app.NavigationUpdate{CurrentStep: &bad}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("out-of-range step: got %v", err)
	}
	if _, err := service.UpdateNavigation(ctx, p.ID, app.NavigationUpdate{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty patch: got %v", err)
	}
}

func TestResumeSession(t *testing.T) {
	ctx := context.Background()
	service, p := newTestService(t)

	resume, err := service.ResumeSession(ctx, p.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resume.Gate != app.GateNotStarted || resume.FirstUnanswered != 0 || resume.AlreadyComplete {
		t.Fatalf("fresh participant: %+v", resume)
	}

	if _, err := service.Submit(ctx, p.ID, 1, "A"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	resume, err = service.ResumeSession(ctx, p.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resume.Gate != app.GateActive || resume.FirstUnanswered != 1 {
		t.Fatalf("mid-test: %+v", resume)
	}

	if _, err := service.Submit(ctx, p.ID, 2, "Y"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	resume, err = service.ResumeSession(ctx, p.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resume.Gate != app.GateCompleted || !resume.AlreadyComplete {
		t.Fatalf("completed: %+v", resume)
	}
}

func TestFeedReceivesProgressEvents(t *testing.T) {
	ctx := context.Background()
	service, p := newTestService(t)

	events, cancel := service.Feed().Subscribe()
	defer cancel()

	if _, err := service.Submit(ctx, p.ID, 1, "A"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case ev := <-events:
		if ev.ParticipantID != p.ID || ev.AnswersCount != 1 || ev.Completed {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no progress event received")
	}
}

// notifyRecorder captures sink invocations.
type notifyRecorder struct {
	mu    sync.Mutex
	calls []domain.Participant
	done  chan struct{}
}

func (r *notifyRecorder) Send(_ context.Context, p domain.Participant) error {
	r.mu.Lock()
	r.calls = append(r.calls, p)
	r.mu.Unlock()
	close(r.done)
	return nil
}

func TestRegisterNotifiesSinkOnce(t *testing.T) {
	ctx := context.Background()
	sink := &notifyRecorder{done: make(chan struct{})}
	service := app.NewAssessmentService(memory.NewParticipantStore(), testCatalog(), sink)

	p, _, err := service.Register(ctx, "Alice Smith", "alice@example.com", "+1 234 567 8901")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatalf("sink not invoked")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.calls) != 1 || sink.calls[0].ID != p.ID {
		t.Fatalf("expected one snapshot for %s, got %+v", p.ID, sink.calls)
	}
}
