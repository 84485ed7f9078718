package quiz

import (
	"context"

	"github.com/pkg/errors"
)

// Resolver decides whether questions are of a supported type and expands
// random questions into their candidate pools.
type Resolver struct {
	bank      QuestionBank
	supported map[string]bool
}

func NewResolver(bank QuestionBank) *Resolver {
	sup := make(map[string]bool, len(SupportedTypes))
	for _, t := range SupportedTypes {
		sup[t] = true
	}
	return &Resolver{bank: bank, supported: sup}
}

// IsSupported reports whether q, and every question a random q can resolve
// to, has an allowed type. A random question with an empty pool is not supported.
func (r *Resolver) IsSupported(ctx context.Context, q Question) (bool, error) {
	ok, err := r.isSupported(ctx, q, map[int64]bool{})
	if err != nil || !ok || !q.IsRandom() {
		return ok, err
	}
	// a pool made only of references back to itself has nothing to present
	_, err = r.ResolveRandom(ctx, q)
	if errors.Is(err, ErrEmptyPool) {
		return false, nil
	}
	return err == nil, err
}

func (r *Resolver) isSupported(ctx context.Context, q Question, path map[int64]bool) (bool, error) {
	if !r.supported[q.Type] {
		return false, nil
	}
	if !q.IsRandom() {
		return true, nil
	}
	if q.Random == nil {
		return false, nil
	}
	cat := q.Random.CategoryID
	if path[cat] {
		// category refers back to itself; its questions are already being checked
		return true, nil
	}
	pool, err := r.bank.CategoryQuestions(ctx, cat, q.Random.IncludeSubcategories)
	if err != nil {
		return false, errors.Wrapf(err, "load category %d", cat)
	}
	if len(pool) == 0 {
		return false, nil
	}
	path[cat] = true
	defer delete(path, cat)
	for _, c := range pool {
		ok, err := r.isSupported(ctx, c, path)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// ResolveRandom returns the concrete questions a question can be presented
// as. A direct question resolves to itself. Nested random questions are
// flattened, and a category already on the resolution path is skipped.
func (r *Resolver) ResolveRandom(ctx context.Context, q Question) ([]Question, error) {
	if !q.IsRandom() {
		return []Question{q}, nil
	}
	out, err := r.resolve(ctx, q, map[int64]bool{})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(ErrEmptyPool, "question %d", q.ID)
	}
	return out, nil
}

func (r *Resolver) resolve(ctx context.Context, q Question, path map[int64]bool) ([]Question, error) {
	if q.Random == nil || path[q.Random.CategoryID] {
		return nil, nil
	}
	cat := q.Random.CategoryID
	pool, err := r.bank.CategoryQuestions(ctx, cat, q.Random.IncludeSubcategories)
	if err != nil {
		return nil, errors.Wrapf(err, "load category %d", cat)
	}
	path[cat] = true
	defer delete(path, cat)

	out := make([]Question, 0, len(pool))
	for _, c := range pool {
		if !c.IsRandom() {
			out = append(out, c)
			continue
		}
		sub, err := r.resolve(ctx, c, path)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}
