// Package memory is an in-process implementation of expenses.Repository.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"expenses-api/internal/expenses"
	"expenses-api/internal/models"
)

// Store keeps users, categories and records in maps. It is safe for concurrent use.
// Transactions are serialized and run in isolation: calls made outside a
// transaction wait until it commits or rolls back.
type Store struct {
	txMu sync.RWMutex
	t    *tables
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{t: &tables{
		users:      make(map[int64]models.User),
		categories: make(map[int64]models.Category),
		records:    make(map[int64]models.Record),
	}}
}

// WithinTx runs fn with every other caller excluded and restores the
// previous state if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(tx expenses.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.t.WithinTx(ctx, fn)
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.CreateUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.GetUser(ctx, id)
}

func (s *Store) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.GetUserByName(ctx, name)
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.ListUsers(ctx)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.DeleteUser(ctx, id)
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.CreateCategory(ctx, c)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.GetCategory(ctx, id)
}

func (s *Store) ListCategoriesVisibleTo(ctx context.Context, userID int64) ([]models.Category, error) {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.ListCategoriesVisibleTo(ctx, userID)
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.DeleteCategory(ctx, id)
}

func (s *Store) CreateRecord(ctx context.Context, r *models.Record) error {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.CreateRecord(ctx, r)
}

func (s *Store) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.GetRecord(ctx, id)
}

func (s *Store) ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.Record, error) {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.ListRecords(ctx, filter)
}

func (s *Store) DeleteRecord(ctx context.Context, id int64) error {
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return s.t.DeleteRecord(ctx, id)
}

// tables holds the data. Its methods are what a transaction sees.
type tables struct {
	mu sync.Mutex

	users      map[int64]models.User
	categories map[int64]models.Category
	records    map[int64]models.Record
	lastID     int64
}

type snapshot struct {
	users      map[int64]models.User
	categories map[int64]models.Category
	records    map[int64]models.Record
	lastID     int64
}

// WithinTx restores the state taken before fn if fn fails. Nested calls
// behave like savepoints.
func (s *tables) WithinTx(ctx context.Context, fn func(tx expenses.Repository) error) error {
	s.mu.Lock()
	saved := snapshot{
		users:      maps.Clone(s.users),
		categories: maps.Clone(s.categories),
		records:    maps.Clone(s.records),
		lastID:     s.lastID,
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.users, s.categories, s.records, s.lastID = saved.users, saved.categories, saved.records, saved.lastID
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *tables) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *tables) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Name == u.Name {
			return expenses.ErrDuplicateName
		}
	}
	u.ID = s.nextID()
	s.users[u.ID] = *u
	return nil
}

func (s *tables) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, expenses.ErrNotFound
	}
	return &u, nil
}

func (s *tables) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Name == name {
			return &u, nil
		}
	}
	return nil, expenses.ErrNotFound
}

func (s *tables) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedValues(s.users), nil
}

func (s *tables) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return expenses.ErrNotFound
	}
	for cid, c := range s.categories {
		if c.OwnedBy(id) {
			s.deleteCategoryLocked(cid)
		}
	}
	for rid, r := range s.records {
		if r.UserID == id {
			delete(s.records, rid)
		}
	}
	delete(s.users, id)
	return nil
}

func (s *tables) CreateCategory(ctx context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextID()
	s.categories[c.ID] = *c
	return nil
}

func (s *tables) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, expenses.ErrNotFound
	}
	return &c, nil
}

func (s *tables) ListCategoriesVisibleTo(ctx context.Context, userID int64) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visible := make([]models.Category, 0)
	for _, c := range sortedValues(s.categories) {
		if c.IsGlobal || c.OwnedBy(userID) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

func (s *tables) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return expenses.ErrNotFound
	}
	s.deleteCategoryLocked(id)
	return nil
}

func (s *tables) deleteCategoryLocked(id int64) {
	for rid, r := range s.records {
		if r.CategoryID == id {
			delete(s.records, rid)
		}
	}
	delete(s.categories, id)
}

func (s *tables) CreateRecord(ctx context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[r.UserID]; !ok {
		return expenses.ErrNotFound
	}
	if _, ok := s.categories[r.CategoryID]; !ok {
		return expenses.ErrNotFound
	}
	r.ID = s.nextID()
	s.records[r.ID] = *r
	return nil
}

func (s *tables) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, expenses.ErrNotFound
	}
	return &r, nil
}

func (s *tables) ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Record, 0)
	for _, r := range sortedValues(s.records) {
		if filter.UserID != nil && r.UserID != *filter.UserID {
			continue
		}
		if filter.CategoryID != nil && r.CategoryID != *filter.CategoryID {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *tables) DeleteRecord(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return expenses.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func sortedValues[V any](m map[int64]V) []V {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

var (
	_ expenses.Repository = (*Store)(nil)
	_ expenses.Repository = (*tables)(nil)
)
