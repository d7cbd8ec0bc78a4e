package app

import (
	"math"

	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// Phase is the navigational state of a participant. The integer values are
// the persisted current_step field, so they must not be reordered.
type Phase int

const (
	PhaseNotStarted      Phase = 0
	PhaseListeningActive Phase = 1
	PhaseReadingActive   Phase = 2
	PhaseCompleted       Phase = 3
)

// NextPhase is the pure step-transition function, evaluated only for a
// genuinely new answer (idempotent replays never move the phase).
//
// The first answer starts the test in the phase matching the question kind;
// a reading answer afterwards raises the phase to reading (never lowers it);
// answering the final unanswered question completes the test regardless of
// kind. The phase is monotonically non-decreasing.
func NextPhase(current Phase, kind domain.QuestionKind, firstAnswer, lastAnswer bool) Phase {
	if lastAnswer {
		return PhaseCompleted
	}
	if firstAnswer {
		if kind == domain.KindListening {
			return PhaseListeningActive
		}
		return PhaseReadingActive
	}
	if kind == domain.KindReading && current < PhaseReadingActive {
		return PhaseReadingActive
	}
	return current
}

// Gate is the page-level access decision derived from a persisted step.
type Gate int

const (
	GateNotStarted Gate = iota
	GateActive
	GateCompleted
)

func (g Gate) String() string {
	switch g {
	case GateNotStarted:
		return "not_started"
	case GateActive:
		return "active"
	case GateCompleted:
		return "completed"
	}
	return "unknown"
}

// Decide maps a persisted step to a navigation gate. A step outside 0..3 is
// corrupted data and is surfaced as such rather than coerced to a gate.
func Decide(step int) (Gate, error) {
	switch Phase(step) {
	case PhaseNotStarted:
		return GateNotStarted, nil
	case PhaseListeningActive, PhaseReadingActive:
		return GateActive, nil
	case PhaseCompleted:
		return GateCompleted, nil
	}
	return GateNotStarted, domain.ErrInvalidStep
}

// FirstUnanswered returns the index (in catalog order) of the first question
// without a recorded answer. The second return is true when every question
// already has one; completion is derivable this way even before the step has
// been advanced to 3.
func FirstUnanswered(answers []domain.AnswerRecord, questions []domain.Question) (int, bool) {
	answered := make(map[int]struct{}, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = struct{}{}
	}
	for i, q := range questions {
		if _, ok := answered[q.ID]; !ok {
			return i, false
		}
	}
	return 0, true
}

// scorePercent rounds 100*correct/total to the nearest integer, 0 when the
// catalog is empty.
func scorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
