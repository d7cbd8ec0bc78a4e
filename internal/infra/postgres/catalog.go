package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// Catalog reads the question set from Postgres, ordered by id. It satisfies
// both app.QuestionCatalog (direct mode) and redis.CatalogLoader (cached
// mode).
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, type, COALESCE(question_text, ''), COALESCE(question_audio_url, ''),
		       COALESCE(question_image_url, ''), options, correct_option
		FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		var options []byte
		if err := rows.Scan(&q.ID, &q.Kind, &q.Text, &q.AudioURL, &q.ImageURL, &options, &q.CorrectOption); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

func (c *Catalog) List(ctx context.Context) ([]domain.Question, error) {
	return c.LoadQuestions(ctx)
}

func (c *Catalog) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func (c *Catalog) Get(ctx context.Context, id int) (domain.Question, error) {
	var q domain.Question
	var options []byte
	err := c.pool.QueryRow(ctx, `
		SELECT id, type, COALESCE(question_text, ''), COALESCE(question_audio_url, ''),
		       COALESCE(question_image_url, ''), options, correct_option
		FROM questions WHERE id=$1`, id).
		Scan(&q.ID, &q.Kind, &q.Text, &q.AudioURL, &q.ImageURL, &options, &q.CorrectOption)
	if err != nil {
		if isNoRows(err) {
			return domain.Question{}, domain.ErrQuestionNotFound
		}
		return domain.Question{}, fmt.Errorf("load question %d: %w", id, err)
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("decode options for question %d: %w", id, err)
	}
	return q, nil
}
