package domain

import "errors"

var (
	// ErrParticipantNotFound is returned when the token does not resolve to a participant.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrQuestionNotFound indicates a submitted question ID is not in the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidInput covers malformed request fields (empty answer, bad token).
	ErrInvalidInput = errors.New("invalid input")
	// ErrWriteConflict signals an optimistic-concurrency clash on a participant
	// update; callers retry against a fresh read.
	ErrWriteConflict = errors.New("participant write conflict")
	// ErrInvalidStep marks a persisted step outside 0..3. This is data
	// corruption and is reported, never coerced.
	ErrInvalidStep = errors.New("invalid participant step")
)
