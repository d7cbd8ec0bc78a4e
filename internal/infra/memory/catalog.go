package memory

import (
	"context"
	"sort"

	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// Catalog is a static in-memory question catalog, ordered by question ID.
// It backs the no-database mode and the unit tests.
type Catalog struct {
	questions []domain.Question
	byID      map[int]domain.Question
}

func NewCatalog(questions []domain.Question) *Catalog {
	ordered := append([]domain.Question(nil), questions...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	byID := make(map[int]domain.Question, len(ordered))
	for _, q := range ordered {
		byID[q.ID] = q
	}
	return &Catalog{questions: ordered, byID: byID}
}

func (c *Catalog) List(_ context.Context) ([]domain.Question, error) {
	return append([]domain.Question(nil), c.questions...), nil
}

func (c *Catalog) Count(_ context.Context) (int, error) {
	return len(c.questions), nil
}

func (c *Catalog) Get(_ context.Context, id int) (domain.Question, error) {
	q, ok := c.byID[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}
