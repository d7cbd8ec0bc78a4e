package domain

import "time"

// QuestionKind separates the two sections of the placement test.
type QuestionKind string

const (
	KindListening QuestionKind = "listening"
	KindReading   QuestionKind = "reading"
)

// Question is an immutable catalog entry. Options are index-addressable and
// CorrectOption is a 0-based index into them.
type Question struct {
	ID            int          `json:"id"`
	Kind          QuestionKind `json:"type"`
	Text          string       `json:"question_text,omitempty"`
	AudioURL      string       `json:"question_audio_url,omitempty"`
	ImageURL      string       `json:"question_image_url,omitempty"`
	Options       []string     `json:"options"`
	CorrectOption int          `json:"correct_option"`
}

// PublicQuestion is the client-facing view with the answer key withheld.
type PublicQuestion struct {
	ID       int          `json:"id"`
	Kind     QuestionKind `json:"type"`
	Text     string       `json:"question_text,omitempty"`
	AudioURL string       `json:"question_audio_url,omitempty"`
	ImageURL string       `json:"question_image_url,omitempty"`
	Options  []string     `json:"options"`
}

// Public strips the correct option from a question.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:       q.ID,
		Kind:     q.Kind,
		Text:     q.Text,
		AudioURL: q.AudioURL,
		ImageURL: q.ImageURL,
		Options:  q.Options,
	}
}

// AnswerRecord is immutable once appended to a participant. Kind is copied
// from the question at submission time so recorded answers stay
// interpretable even if the catalog changes afterwards.
type AnswerRecord struct {
	QuestionID int          `json:"question_id"`
	Answer     string       `json:"answer"`
	IsCorrect  bool         `json:"is_correct"`
	Kind       QuestionKind `json:"type"`
	AnsweredAt time.Time    `json:"answered_at"`
}

// Participant is the mutable aggregate for one test-taker, keyed by an
// unguessable UUID token. Version backs optimistic-concurrency writes: every
// successful update increments it, and an update against a stale version is
// rejected with ErrWriteConflict.
type Participant struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Email              string         `json:"email"`
	Phone              string         `json:"phone"`
	Answers            []AnswerRecord `json:"answers"`
	CorrectQuestionIDs []int          `json:"correct_answers"`
	ReadingScore       int            `json:"reading_score"`
	ListeningScore     int            `json:"listening_score"`
	ScorePercent       int            `json:"score_percent"`
	HasStarted         bool           `json:"has_started"`
	CurrentStep        int            `json:"current_step"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	Version            int64          `json:"-"`
}

// AnswerFor returns the recorded answer for a question, if any.
func (p *Participant) AnswerFor(questionID int) (AnswerRecord, bool) {
	for _, a := range p.Answers {
		if a.QuestionID == questionID {
			return a, true
		}
	}
	return AnswerRecord{}, false
}

// SubmitResult is the outcome of one answer submission, idempotent replays
// included.
type SubmitResult struct {
	IsCorrect       bool `json:"isCorrect"`
	CurrentStep     int  `json:"current_step"`
	HasStarted      bool `json:"has_started"`
	ScorePercent    int  `json:"score_percent"`
	ReadingScore    int  `json:"reading_score"`
	ListeningScore  int  `json:"listening_score"`
	AnswersCount    int  `json:"answers_count"`
	Completed       bool `json:"completed"`
	AlreadyAnswered bool `json:"-"`
}

// ProgressEvent is broadcast to feed subscribers after each recorded answer.
type ProgressEvent struct {
	ParticipantID string    `json:"participantId"`
	AnswersCount  int       `json:"answersCount"`
	ScorePercent  int       `json:"scorePercent"`
	CurrentStep   int       `json:"currentStep"`
	Completed     bool      `json:"completed"`
	OccurredAt    time.Time `json:"occurredAt"`
}
