package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// ParticipantStore persists participant aggregates in Postgres. Writes are
// optimistic: Update matches on the version the caller read, bumps it, and
// reports ErrWriteConflict when the row moved underneath. The whole
// aggregate lands in one UPDATE, so a submission is all-or-nothing.
type ParticipantStore struct {
	pool *pgxpool.Pool
}

func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

const participantColumns = `
	id, name, email, phone, answers, correct_answers, reading_score,
	listening_score, score_percent, has_started, current_step, completed_at,
	created_at, version`

func (s *ParticipantStore) Get(ctx context.Context, id string) (domain.Participant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id=$1`, id)
	p, err := scanParticipant(row)
	if err != nil {
		if isNoRows(err) {
			return domain.Participant{}, domain.ErrParticipantNotFound
		}
		return domain.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (s *ParticipantStore) Create(ctx context.Context, p domain.Participant) error {
	answers, correct, err := encodeProgress(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO participants (id, name, email, phone, answers, correct_answers,
			reading_score, listening_score, score_percent, has_started, current_step,
			completed_at, created_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1)`,
		p.ID, p.Name, p.Email, p.Phone, answers, correct,
		p.ReadingScore, p.ListeningScore, p.ScorePercent, p.HasStarted, p.CurrentStep,
		p.CompletedAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *ParticipantStore) Update(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	answers, correct, err := encodeProgress(p)
	if err != nil {
		return domain.Participant{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE participants SET
			answers=$3, correct_answers=$4, reading_score=$5, listening_score=$6,
			score_percent=$7, has_started=$8, current_step=$9, completed_at=$10,
			version=version+1
		WHERE id=$1 AND version=$2
		RETURNING `+participantColumns,
		p.ID, p.Version, answers, correct, p.ReadingScore, p.ListeningScore,
		p.ScorePercent, p.HasStarted, p.CurrentStep, p.CompletedAt)

	updated, err := scanParticipant(row)
	if err == nil {
		return updated, nil
	}
	if !isNoRows(err) {
		return domain.Participant{}, fmt.Errorf("update participant: %w", err)
	}

	// No row matched: either the participant is gone or the version is stale.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM participants WHERE id=$1)`, p.ID).Scan(&exists); err != nil {
		return domain.Participant{}, fmt.Errorf("update participant: %w", err)
	}
	if !exists {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return domain.Participant{}, domain.ErrWriteConflict
}

func encodeProgress(p domain.Participant) ([]byte, []byte, error) {
	answers, err := json.Marshal(p.Answers)
	if err != nil {
		return nil, nil, fmt.Errorf("encode answers: %w", err)
	}
	correct, err := json.Marshal(p.CorrectQuestionIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode correct answers: %w", err)
	}
	return answers, correct, nil
}

func scanParticipant(row pgx.Row) (domain.Participant, error) {
	var p domain.Participant
	var answers, correct []byte
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &answers, &correct,
		&p.ReadingScore, &p.ListeningScore, &p.ScorePercent, &p.HasStarted,
		&p.CurrentStep, &p.CompletedAt, &p.CreatedAt, &p.Version)
	if err != nil {
		return domain.Participant{}, err
	}
	if err := json.Unmarshal(answers, &p.Answers); err != nil {
		return domain.Participant{}, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal(correct, &p.CorrectQuestionIDs); err != nil {
		return domain.Participant{}, fmt.Errorf("decode correct answers: %w", err)
	}
	return p, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
