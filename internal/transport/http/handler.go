package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ilyalazarenkoit/eltis-test/internal/app"
	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
	"github.com/ilyalazarenkoit/eltis-test/internal/validate"
)

const (
	participantCookie = "participant_id"
	cookieMaxAge      = 24 * 60 * 60
)

// Handler wires the assessment use cases to the REST API.
type Handler struct {
	service *app.AssessmentService
}

func NewHandler(service *app.AssessmentService) *Handler {
	return &Handler{service: service}
}

// Gates holds the per-endpoint-class rate-limit middleware. A nil gate
// leaves that class unlimited (tests use this).
type Gates struct {
	Register    mux.MiddlewareFunc
	Answer      mux.MiddlewareFunc
	Participant mux.MiddlewareFunc
}

// Register attaches the API routes to the router, each behind its class
// gate.
func (h *Handler) Register(r *mux.Router, gates Gates) {
	wrap := func(gate mux.MiddlewareFunc, fn http.HandlerFunc) http.Handler {
		if gate == nil {
			return fn
		}
		return gate(fn)
	}
	r.Handle("/api/user", wrap(gates.Register, h.RegisterParticipant)).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/api/participant", wrap(gates.Participant, h.GetParticipant)).Methods(http.MethodGet)
	r.Handle("/api/participant", wrap(gates.Participant, h.PatchParticipant)).Methods(http.MethodPatch, http.MethodOptions)
	r.Handle("/api/participant", wrap(gates.Participant, h.DeleteSession)).Methods(http.MethodDelete, http.MethodOptions)
	r.Handle("/api/answer", wrap(gates.Answer, h.SubmitAnswer)).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/api/session", wrap(gates.Participant, h.GetSession)).Methods(http.MethodGet)
	r.Handle("/api/result", wrap(gates.Participant, h.GetResult)).Methods(http.MethodGet)
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// RegisterParticipant creates a participant, hands back the question list
// and sets the session cookie.
func (h *Handler) RegisterParticipant(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name, err := validate.Name(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email, err := validate.Email(req.Email)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	phone, err := validate.Phone(req.Phone)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	participant, questions, err := h.service.Register(r.Context(), name, email, phone)
	if err != nil {
		serveFailure(w, err)
		return
	}

	setSessionCookie(w, participant.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"participant": participant,
		"questions":   publicQuestions(questions),
		"message":     "Participant created successfully",
	})
}

// GetParticipant reports coarse session state for the page-level guards.
// A missing or stale cookie yields a null participant, not an error.
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionToken(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"participant": nil})
		return
	}
	p, err := h.service.Participant(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrParticipantNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"participant": nil})
			return
		}
		serveFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participant": sessionView(p)})
}

type patchRequest struct {
	HasStarted  *bool `json:"has_started"`
	CurrentStep *int  `json:"current_step"`
}

// PatchParticipant applies a client navigation hint.
func (h *Handler) PatchParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionToken(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid participant_id")
		return
	}
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.service.UpdateNavigation(r.Context(), id, app.NavigationUpdate{
		HasStarted:  req.HasStarted,
		CurrentStep: req.CurrentStep,
	})
	if err != nil {
		serveFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "participant": sessionView(p)})
}

// DeleteSession clears the session cookie. The participant record stays.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     participantCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type submitRequest struct {
	QuestionID int    `json:"questionId"`
	Answer     string `json:"answer"`
}

type submitResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	IsCorrect      bool   `json:"isCorrect"`
	CurrentStep    int    `json:"current_step"`
	HasStarted     bool   `json:"has_started"`
	ScorePercent   int    `json:"score_percent"`
	ReadingScore   int    `json:"reading_score"`
	ListeningScore int    `json:"listening_score"`
	AnswersCount   int    `json:"answers_count"`
	Completed      bool   `json:"completed"`
}

// SubmitAnswer records one answer. Replays of an already-answered question
// succeed with the original correctness and a no-op message.
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionToken(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid participant_id")
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Submit(r.Context(), id, req.QuestionID, req.Answer)
	if err != nil {
		serveFailure(w, err)
		return
	}

	resp := submitResponse{
		Success:        true,
		IsCorrect:      result.IsCorrect,
		CurrentStep:    result.CurrentStep,
		HasStarted:     result.HasStarted,
		ScorePercent:   result.ScorePercent,
		ReadingScore:   result.ReadingScore,
		ListeningScore: result.ListeningScore,
		AnswersCount:   result.AnswersCount,
		Completed:      result.Completed,
	}
	if result.AlreadyAnswered {
		resp.Message = "Already answered"
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSession returns the navigation gate and resume point for the test page.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionToken(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid participant_id")
		return
	}
	resume, err := h.service.ResumeSession(r.Context(), id)
	if err != nil {
		serveFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":            resume.Gate.String(),
		"first_unanswered": resume.FirstUnanswered,
		"already_complete": resume.AlreadyComplete,
		"questions":        publicQuestions(resume.Questions),
		"participant":      sessionView(resume.Participant),
	})
}

// GetResult serves the final scores, only once the test is completed.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionToken(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid participant_id")
		return
	}
	resume, err := h.service.ResumeSession(r.Context(), id)
	if err != nil {
		serveFailure(w, err)
		return
	}
	if resume.Gate != app.GateCompleted {
		writeError(w, http.StatusForbidden, "test not completed")
		return
	}

	listeningTotal, readingTotal := 0, 0
	for _, q := range resume.Questions {
		switch q.Kind {
		case domain.KindListening:
			listeningTotal++
		case domain.KindReading:
			readingTotal++
		}
	}
	p := resume.Participant
	writeJSON(w, http.StatusOK, map[string]any{
		"name":            p.Name,
		"email":           p.Email,
		"score_percent":   p.ScorePercent,
		"listening_score": p.ListeningScore,
		"listening_total": listeningTotal,
		"reading_score":   p.ReadingScore,
		"reading_total":   readingTotal,
		"completed_at":    p.CompletedAt,
	})
}

func sessionToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(participantCookie)
	if err != nil || !validate.Token(c.Value) {
		return "", false
	}
	return c.Value, true
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     participantCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func sessionView(p domain.Participant) map[string]any {
	return map[string]any{
		"id":           p.ID,
		"has_started":  p.HasStarted,
		"current_step": p.CurrentStep,
	}
}

func publicQuestions(questions []domain.Question) []domain.PublicQuestion {
	out := make([]domain.PublicQuestion, len(questions))
	for i, q := range questions {
		out[i] = q.Public()
	}
	return out
}

// serveFailure maps domain errors to status codes. Anything unexpected is an
// opaque 500; the detail goes to the log, not the client.
func serveFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrParticipantNotFound):
		writeError(w, http.StatusNotFound, "participant not found")
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeError(w, http.StatusNotFound, "question not found")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
