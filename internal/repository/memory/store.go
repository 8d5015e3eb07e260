// Package memory is a process-local implementation of repository.Store.
// A single mutex serializes transactions, which gives the same guarantees
// as the row locks the postgres store takes.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

type state struct {
	seq           int64
	users         map[int64]domain.User
	books         map[int64]domain.Book
	items         map[int64]domain.BookItem
	requests      map[int64]domain.BorrowRequest
	records       map[int64]domain.BorrowRecord
	policies      map[string]domain.Policy
	payments      map[int64]domain.Payment
	notifications []domain.Notification
}

func newState() *state {
	return &state{
		users:    map[int64]domain.User{},
		books:    map[int64]domain.Book{},
		items:    map[int64]domain.BookItem{},
		requests: map[int64]domain.BorrowRequest{},
		records:  map[int64]domain.BorrowRecord{},
		policies: map[string]domain.Policy{},
		payments: map[int64]domain.Payment{},
	}
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

// clone copies every table. Stored values are replaced, never mutated in
// place, so copying the maps is enough to restore them on rollback.
func (st *state) clone() *state {
	return &state{
		seq:           st.seq,
		users:         maps.Clone(st.users),
		books:         maps.Clone(st.books),
		items:         maps.Clone(st.items),
		requests:      maps.Clone(st.requests),
		records:       maps.Clone(st.records),
		policies:      maps.Clone(st.policies),
		payments:      maps.Clone(st.payments),
		notifications: append([]domain.Notification(nil), st.notifications...),
	}
}

type Store struct {
	mu    sync.Mutex
	state *state
	*repos
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store with the standard violation policies.
func NewStore() *Store {
	s := &Store{state: newState()}
	s.repos = &repos{store: s}
	for _, p := range []domain.Policy{
		{ID: domain.PolicyLostBook, Name: "Lost book", Description: "The copy was not returned"},
		{ID: domain.PolicyDamagedBook, Name: "Damaged book", Description: "The copy was returned damaged beyond use"},
		{ID: domain.PolicyWornBook, Name: "Worn book", Description: "The copy was returned with excessive wear"},
	} {
		s.state.policies[p.ID] = p
	}
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, &repos{store: s, inTx: true}); err != nil {
		s.state = snapshot
		logger.Debug("Rolled back in-memory transaction", "error", err)
		return err
	}
	return nil
}

func (s *Store) Notifications() repository.NotificationRepository {
	return &notificationRepository{repos: s.repos}
}

// AddUser inserts a user, assigning an id when none is set.
func (s *Store) AddUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.state.nextID()
	}
	if u.Role == "" {
		u.Role = domain.UserRoleReader
	}
	if u.CreatedOn == "" {
		u.CreatedOn = time.Now().Format("2006-01-02")
	}
	s.state.users[u.ID] = u
	return u
}

// AddBook inserts a book and, when b.Ebook is set, its electronic edition.
func (s *Store) AddBook(b domain.Book) domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.state.nextID()
	}
	if b.Ebook != nil {
		eb := *b.Ebook
		if eb.ID == 0 {
			eb.ID = s.state.nextID()
		}
		eb.BookID = b.ID
		if eb.Format == "" {
			eb.Format = "EPUB"
		}
		b.Ebook = &eb
	}
	s.state.books[b.ID] = b
	return b
}

// AddBookItem inserts a physical copy. Status and condition default to
// AVAILABLE and NEW.
func (s *Store) AddBookItem(it domain.BookItem) domain.BookItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == 0 {
		it.ID = s.state.nextID()
	}
	if it.Status == "" {
		it.Status = domain.ItemStatusAvailable
	}
	if it.Condition == "" {
		it.Condition = domain.ItemConditionNew
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	it.Book = nil
	s.state.items[it.ID] = it
	return it
}

func (s *Store) AddPolicy(p domain.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.policies[p.ID] = p
}
