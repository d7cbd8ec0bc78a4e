package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// submitAttempts bounds the internal retry on write conflicts before the
// failure is surfaced to the caller.
const submitAttempts = 3

// ParticipantStore persists participant aggregates. Update is an
// optimistic-concurrency write: it matches on the participant's Version and
// returns domain.ErrWriteConflict when another writer got there first.
type ParticipantStore interface {
	Get(ctx context.Context, id string) (domain.Participant, error)
	Create(ctx context.Context, p domain.Participant) error
	Update(ctx context.Context, p domain.Participant) (domain.Participant, error)
}

// QuestionCatalog is the ordered, immutable question set. Count is read
// fresh on every submission so the score percentage always reflects the
// live catalog.
type QuestionCatalog interface {
	List(ctx context.Context) ([]domain.Question, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id int) (domain.Question, error)
}

// NotificationSink exports a participant snapshot to an external system.
// Calls are best-effort and must never delay or fail the triggering request.
type NotificationSink interface {
	Send(ctx context.Context, p domain.Participant) error
}

// AssessmentService contains the progress-engine use cases.
type AssessmentService struct {
	participants ParticipantStore
	catalog      QuestionCatalog
	sink         NotificationSink
	feed         *ProgressFeed
	now          func() time.Time
}

func NewAssessmentService(participants ParticipantStore, catalog QuestionCatalog, sink NotificationSink) *AssessmentService {
	return &AssessmentService{
		participants: participants,
		catalog:      catalog,
		sink:         sink,
		feed:         NewProgressFeed(),
		now:          time.Now,
	}
}

// NewAssessmentServiceWithClock is test-only for deterministic timestamps.
func NewAssessmentServiceWithClock(participants ParticipantStore, catalog QuestionCatalog, sink NotificationSink, now func() time.Time) *AssessmentService {
	s := NewAssessmentService(participants, catalog, sink)
	s.now = now
	return s
}

// Feed exposes the progress event feed for observers.
func (s *AssessmentService) Feed() *ProgressFeed {
	return s.feed
}

// Register creates a fresh participant, exports the snapshot to the
// notification sink off the request path, and returns the ordered question
// list for the client.
func (s *AssessmentService) Register(ctx context.Context, name, email, phone string) (domain.Participant, []domain.Question, error) {
	p := domain.Participant{
		ID:                 uuid.NewString(),
		Name:               name,
		Email:              email,
		Phone:              phone,
		Answers:            []domain.AnswerRecord{},
		CorrectQuestionIDs: []int{},
		CurrentStep:        int(PhaseNotStarted),
		CreatedAt:          s.now(),
	}
	if err := s.participants.Create(ctx, p); err != nil {
		return domain.Participant{}, nil, fmt.Errorf("create participant: %w", err)
	}

	questions, err := s.catalog.List(ctx)
	if err != nil {
		return domain.Participant{}, nil, fmt.Errorf("list questions: %w", err)
	}

	if s.sink != nil {
		snapshot := p
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.sink.Send(ctx, snapshot); err != nil {
				log.Printf("notification sink: %v", err)
			}
		}()
	}
	return p, questions, nil
}

// Participant returns the persisted aggregate for a token.
func (s *AssessmentService) Participant(ctx context.Context, id string) (domain.Participant, error) {
	return s.participants.Get(ctx, id)
}

// Submit records one answer for a participant. The transition is idempotent
// per (participant, question): a replay returns the stored correctness and
// leaves every aggregate untouched. Write conflicts with concurrent
// submissions are retried internally against a fresh read.
func (s *AssessmentService) Submit(ctx context.Context, participantID string, questionID int, answer string) (domain.SubmitResult, error) {
	if strings.TrimSpace(answer) == "" {
		return domain.SubmitResult{}, fmt.Errorf("%w: empty answer", domain.ErrInvalidInput)
	}

	question, err := s.catalog.Get(ctx, questionID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	total, err := s.catalog.Count(ctx)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("count questions: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < submitAttempts; attempt++ {
		p, err := s.participants.Get(ctx, participantID)
		if err != nil {
			return domain.SubmitResult{}, err
		}

		result, changed := applyAnswer(&p, question, answer, total, s.now())
		if !changed {
			return result, nil
		}

		updated, err := s.participants.Update(ctx, p)
		if err != nil {
			if errors.Is(err, domain.ErrWriteConflict) {
				lastErr = err
				continue
			}
			return domain.SubmitResult{}, err
		}

		s.feed.Publish(domain.ProgressEvent{
			ParticipantID: updated.ID,
			AnswersCount:  len(updated.Answers),
			ScorePercent:  updated.ScorePercent,
			CurrentStep:   updated.CurrentStep,
			Completed:     result.Completed,
			OccurredAt:    s.now(),
		})
		return result, nil
	}
	return domain.SubmitResult{}, fmt.Errorf("submit answer for %s: %w", participantID, lastErr)
}

// applyAnswer performs the scoring transition on the aggregate in place.
// It reports changed=false for an idempotent replay, in which case p is
// untouched and the result mirrors the stored state.
func applyAnswer(p *domain.Participant, q domain.Question, answer string, total int, now time.Time) (domain.SubmitResult, bool) {
	if prior, ok := p.AnswerFor(q.ID); ok {
		return domain.SubmitResult{
			IsCorrect:       prior.IsCorrect,
			CurrentStep:     p.CurrentStep,
			HasStarted:      p.HasStarted,
			ScorePercent:    p.ScorePercent,
			ReadingScore:    p.ReadingScore,
			ListeningScore:  p.ListeningScore,
			AnswersCount:    len(p.Answers),
			Completed:       Phase(p.CurrentStep) == PhaseCompleted,
			AlreadyAnswered: true,
		}, false
	}

	selected := -1
	for i, opt := range q.Options {
		if opt == answer {
			selected = i
			break
		}
	}
	// Text matching no option is a wrong answer, never an error: the record
	// still lands so the question cannot be retried into a different score.
	isCorrect := selected >= 0 && selected == q.CorrectOption

	p.Answers = append(p.Answers, domain.AnswerRecord{
		QuestionID: q.ID,
		Answer:     answer,
		IsCorrect:  isCorrect,
		Kind:       q.Kind,
		AnsweredAt: now,
	})
	if isCorrect {
		p.CorrectQuestionIDs = append(p.CorrectQuestionIDs, q.ID)
		switch q.Kind {
		case domain.KindReading:
			p.ReadingScore++
		case domain.KindListening:
			p.ListeningScore++
		}
	}
	p.ScorePercent = scorePercent(len(p.CorrectQuestionIDs), total)

	firstAnswer := !p.HasStarted
	lastAnswer := len(p.Answers) >= total
	p.HasStarted = true
	p.CurrentStep = int(NextPhase(Phase(p.CurrentStep), q.Kind, firstAnswer, lastAnswer))
	if lastAnswer && p.CompletedAt == nil {
		completedAt := now
		p.CompletedAt = &completedAt
	}

	return domain.SubmitResult{
		IsCorrect:      isCorrect,
		CurrentStep:    p.CurrentStep,
		HasStarted:     p.HasStarted,
		ScorePercent:   p.ScorePercent,
		ReadingScore:   p.ReadingScore,
		ListeningScore: p.ListeningScore,
		AnswersCount:   len(p.Answers),
		Completed:      lastAnswer,
	}, true
}

// NavigationUpdate carries the optional fields of a navigation patch.
type NavigationUpdate struct {
	HasStarted  *bool
	CurrentStep *int
}

// UpdateNavigation applies a client navigation hint. HasStarted is monotonic
// and CurrentStep never moves backwards; values outside 0..3 are rejected.
func (s *AssessmentService) UpdateNavigation(ctx context.Context, participantID string, upd NavigationUpdate) (domain.Participant, error) {
	if upd.HasStarted == nil && upd.CurrentStep == nil {
		return domain.Participant{}, fmt.Errorf("%w: no fields to update", domain.ErrInvalidInput)
	}
	if upd.CurrentStep != nil {
		if step := *upd.CurrentStep; step < int(PhaseNotStarted) || step > int(PhaseCompleted) {
			return domain.Participant{}, fmt.Errorf("%w: step %d out of range", domain.ErrInvalidInput, step)
		}
	}

	var lastErr error
	for attempt := 0; attempt < submitAttempts; attempt++ {
		p, err := s.participants.Get(ctx, participantID)
		if err != nil {
			return domain.Participant{}, err
		}
		if upd.HasStarted != nil && *upd.HasStarted {
			p.HasStarted = true
		}
		if upd.CurrentStep != nil && *upd.CurrentStep > p.CurrentStep {
			p.CurrentStep = *upd.CurrentStep
		}

		updated, err := s.participants.Update(ctx, p)
		if err != nil {
			if errors.Is(err, domain.ErrWriteConflict) {
				lastErr = err
				continue
			}
			return domain.Participant{}, err
		}
		return updated, nil
	}
	return domain.Participant{}, fmt.Errorf("update navigation for %s: %w", participantID, lastErr)
}

// Resume captures everything the client needs to re-enter the test: the
// navigation gate, the ordered questions, and where to pick up.
type Resume struct {
	Gate            Gate
	Questions       []domain.Question
	FirstUnanswered int
	AlreadyComplete bool
	Participant     domain.Participant
}

// ResumeSession computes the flow decision for a returning participant.
func (s *AssessmentService) ResumeSession(ctx context.Context, participantID string) (Resume, error) {
	p, err := s.participants.Get(ctx, participantID)
	if err != nil {
		return Resume{}, err
	}
	gate, err := Decide(p.CurrentStep)
	if err != nil {
		return Resume{}, fmt.Errorf("participant %s: %w", participantID, err)
	}
	questions, err := s.catalog.List(ctx)
	if err != nil {
		return Resume{}, fmt.Errorf("list questions: %w", err)
	}
	idx, complete := FirstUnanswered(p.Answers, questions)
	return Resume{
		Gate:            gate,
		Questions:       questions,
		FirstUnanswered: idx,
		AlreadyComplete: complete,
		Participant:     p,
	}, nil
}
