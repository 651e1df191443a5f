package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ansonkao/time-tracker/internal/models"
)

// CategoriesKey is where the full category list lives in the KV
// collaborator. Carried over from the browser-local storage key of the
// first version of this tool.
const CategoriesKey = "time-tracker:categories"

// ErrCategoryNotFound is returned for operations on unknown category IDs.
var ErrCategoryNotFound = errors.New("category not found")

// ErrIndexOutOfRange is returned when a reorder index falls outside the list.
var ErrIndexOutOfRange = errors.New("reorder index out of range")

// CategoryStore owns the ordered list of user categories. Every mutation
// is a single critical section that rewrites the whole list in the KV
// collaborator; the in-memory list only becomes authoritative after the
// persist succeeds, otherwise it is rolled back to the prior snapshot.
type CategoryStore struct {
	kv  KV
	log *zap.Logger

	mu         sync.Mutex
	categories []models.Category
	loaded     bool
}

// NewCategoryStore creates a store on top of the given KV collaborator.
func NewCategoryStore(kv KV, log *zap.Logger) *CategoryStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CategoryStore{kv: kv, log: log}
}

// load reads the stored list once. An absent key is an empty list.
// Callers must hold the mutex.
func (s *CategoryStore) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	raw, ok, err := s.kv.Get(ctx, CategoriesKey)
	if err != nil {
		return fmt.Errorf("loading categories: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &s.categories); err != nil {
			return fmt.Errorf("decoding stored categories: %w", err)
		}
	}
	s.loaded = true
	return nil
}

// persist writes the full current list. On failure the in-memory list is
// restored to prev and the error is returned; it is never swallowed.
func (s *CategoryStore) persist(ctx context.Context, prev []models.Category) error {
	raw, err := json.Marshal(s.categories)
	if err != nil {
		s.categories = prev
		return fmt.Errorf("encoding categories: %w", err)
	}
	if err := s.kv.Set(ctx, CategoriesKey, string(raw)); err != nil {
		s.categories = prev
		s.log.Error("category_persist_failed", zap.Error(err))
		return fmt.Errorf("persisting categories: %w", err)
	}
	return nil
}

// snapshot copies the current list so callers can't alias internal state.
func (s *CategoryStore) snapshot() []models.Category {
	out := make([]models.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// List returns the categories in display order.
func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// Add appends a new category with a generated ID and persists the list.
func (s *CategoryStore) Add(ctx context.Context, name, color string) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return models.Category{}, err
	}

	cat := models.Category{ID: uuid.NewString(), Name: name, Color: color}
	prev := s.snapshot()
	s.categories = append(s.categories, cat)
	if err := s.persist(ctx, prev); err != nil {
		return models.Category{}, err
	}
	return cat, nil
}

// Update applies the non-nil fields of update to the category with the
// given ID. The ID itself is immutable.
func (s *CategoryStore) Update(ctx context.Context, id string, update models.CategoryUpdate) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return models.Category{}, err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Category{}, fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
	}

	prev := s.snapshot()
	if update.Name != nil {
		s.categories[idx].Name = *update.Name
	}
	if update.Color != nil {
		s.categories[idx].Color = *update.Color
	}
	if err := s.persist(ctx, prev); err != nil {
		return models.Category{}, err
	}
	return s.categories[idx], nil
}

// Remove deletes the category with the given ID.
func (s *CategoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
	}

	prev := s.snapshot()
	s.categories = append(s.categories[:idx], s.categories[idx+1:]...)
	if err := s.persist(ctx, prev); err != nil {
		return err
	}
	return nil
}

// Reorder moves the category at src to dst with remove-then-reinsert
// semantics and persists the new order.
func (s *CategoryStore) Reorder(ctx context.Context, src, dst int) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	n := len(s.categories)
	if src < 0 || src >= n || dst < 0 || dst >= n {
		return nil, fmt.Errorf("%w: src=%d dst=%d len=%d", ErrIndexOutOfRange, src, dst, n)
	}

	prev := s.snapshot()
	moved := s.categories[src]
	rest := append(s.categories[:src:src], s.categories[src+1:]...)
	reordered := make([]models.Category, 0, n)
	reordered = append(reordered, rest[:dst]...)
	reordered = append(reordered, moved)
	reordered = append(reordered, rest[dst:]...)
	s.categories = reordered

	if err := s.persist(ctx, prev); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// Replace swaps in a complete reordered list. The new list must contain
// exactly the existing IDs; this is the bulk form used when the client
// sends the whole drag-and-drop result.
func (s *CategoryStore) Replace(ctx context.Context, ordered []models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return err
	}

	if len(ordered) != len(s.categories) {
		return fmt.Errorf("replacement list has %d categories, want %d", len(ordered), len(s.categories))
	}
	existing := make(map[string]bool, len(s.categories))
	for _, cat := range s.categories {
		existing[cat.ID] = true
	}
	for _, cat := range ordered {
		if !existing[cat.ID] {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, cat.ID)
		}
	}

	prev := s.snapshot()
	s.categories = make([]models.Category, len(ordered))
	copy(s.categories, ordered)
	if err := s.persist(ctx, prev); err != nil {
		return err
	}
	return nil
}

// indexOf returns the position of the category with the given ID, or -1.
// Callers must hold the mutex.
func (s *CategoryStore) indexOf(id string) int {
	for i, cat := range s.categories {
		if cat.ID == id {
			return i
		}
	}
	return -1
}
