package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

// repos implements every repository on top of the store's state. Outside a
// transaction each call takes the store mutex; inside WithinTx the mutex is
// already held.
type repos struct {
	store *Store
	inTx  bool
}

func (r *repos) view(fn func(st *state) error) error {
	if !r.inTx {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}
	return fn(r.store.state)
}

func (r *repos) Books() repository.BookRepository                   { return &bookRepository{r} }
func (r *repos) BookItems() repository.BookItemRepository           { return &bookItemRepository{r} }
func (r *repos) BorrowRequests() repository.BorrowRequestRepository { return &borrowRequestRepository{r} }
func (r *repos) BorrowRecords() repository.BorrowRecordRepository   { return &borrowRecordRepository{r} }
func (r *repos) Payments() repository.PaymentRepository             { return &paymentRepository{r} }
func (r *repos) Policies() repository.PolicyRepository              { return &policyRepository{r} }
func (r *repos) Users() repository.UserRepository                   { return &userRepository{r} }

type bookRepository struct{ *repos }

func (r *bookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	var out *domain.Book
	err := r.view(func(st *state) error {
		b, ok := st.books[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

// LockForAllocation only checks existence; the store mutex already
// serializes transactions.
func (r *bookRepository) LockForAllocation(ctx context.Context, ids []int64) error {
	return r.view(func(st *state) error {
		for _, id := range ids {
			if _, ok := st.books[id]; !ok {
				return fmt.Errorf("lock book %d: %w", id, domain.ErrNotFound)
			}
		}
		return nil
	})
}

type bookItemRepository struct{ *repos }

func (r *bookItemRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.BookItem, error) {
	var out []domain.BookItem
	err := r.view(func(st *state) error {
		for _, id := range ids {
			it, ok := st.items[id]
			if !ok {
				continue
			}
			if b, ok := st.books[it.BookID]; ok {
				it.Book = &domain.Book{ID: b.ID, Title: b.Title, AuthorName: b.AuthorName}
			}
			out = append(out, it)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *bookItemRepository) CountAvailable(ctx context.Context, bookID int64) (int, error) {
	n := 0
	err := r.view(func(st *state) error {
		for _, it := range st.items {
			if it.BookID == bookID && it.Status == domain.ItemStatusAvailable && !it.IsDeleted() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *bookItemRepository) UpdateStatus(ctx context.Context, id int64, status domain.ItemStatus) error {
	return r.update(id, func(it *domain.BookItem) { it.Status = status })
}

func (r *bookItemRepository) UpdateCondition(ctx context.Context, id int64, condition domain.ItemCondition) error {
	return r.update(id, func(it *domain.BookItem) { it.Condition = condition })
}

func (r *bookItemRepository) UpdateConditionAndStatus(ctx context.Context, id int64, condition domain.ItemCondition, status domain.ItemStatus) error {
	return r.update(id, func(it *domain.BookItem) {
		it.Condition = condition
		it.Status = status
	})
}

func (r *bookItemRepository) update(id int64, fn func(it *domain.BookItem)) error {
	return r.view(func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return fmt.Errorf("book item %d: %w", id, domain.ErrNotFound)
		}
		fn(&it)
		st.items[id] = it
		return nil
	})
}

type borrowRequestRepository struct{ *repos }

func (r *borrowRequestRepository) Create(ctx context.Context, req *domain.BorrowRequest) error {
	return r.view(func(st *state) error {
		seen := map[int64]bool{}
		for _, it := range req.Items {
			if seen[it.BookID] {
				return domain.NewValidationError("duplicate book in request", fmt.Sprint(it.BookID))
			}
			seen[it.BookID] = true
		}

		now := time.Now()
		req.ID = st.nextID()
		req.CreatedAt = now
		req.UpdatedAt = now
		for i := range req.Items {
			req.Items[i].ID = st.nextID()
			req.Items[i].RequestID = req.ID
			req.Items[i].CreatedAt = now
		}
		stored := *req
		stored.Items = slices.Clone(req.Items)
		st.requests[req.ID] = stored
		return nil
	})
}

func (r *borrowRequestRepository) GetByID(ctx context.Context, id int64) (*domain.BorrowRequest, error) {
	var out *domain.BorrowRequest
	err := r.view(func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return domain.ErrNotFound
		}
		req.Items = slices.Clone(req.Items)
		out = &req
		return nil
	})
	return out, err
}

func (r *borrowRequestRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.BorrowRequestStatus) (bool, error) {
	applied := false
	err := r.view(func(st *state) error {
		req, ok := st.requests[id]
		if !ok || req.Status != from {
			return nil
		}
		req.Status = to
		req.UpdatedAt = time.Now()
		st.requests[id] = req
		applied = true
		return nil
	})
	return applied, err
}

// queue lists the items of requests in the given status that want bookID, in
// FIFO order.
func queue(st *state, bookID int64, status domain.BorrowRequestStatus) []domain.BorrowRequestItem {
	var out []domain.BorrowRequestItem
	for _, req := range st.requests {
		if req.Status != status {
			continue
		}
		for _, it := range req.Items {
			if it.BookID == bookID {
				out = append(out, it)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *borrowRequestRepository) OldestPendingItem(ctx context.Context, bookID int64) (*domain.BorrowRequestItem, error) {
	var out *domain.BorrowRequestItem
	err := r.view(func(st *state) error {
		q := queue(st, bookID, domain.BorrowRequestStatusPending)
		if len(q) == 0 {
			return domain.ErrNotFound
		}
		out = &q[0]
		return nil
	})
	return out, err
}

func (r *borrowRequestRepository) ApprovedQuantity(ctx context.Context, bookID int64) (int, error) {
	n := 0
	err := r.view(func(st *state) error {
		for _, it := range queue(st, bookID, domain.BorrowRequestStatusApproved) {
			n += it.Quantity
		}
		return nil
	})
	return n, err
}

func (r *borrowRequestRepository) PendingQueue(ctx context.Context, bookID int64) ([]domain.HoldQueueEntry, error) {
	var out []domain.HoldQueueEntry
	err := r.view(func(st *state) error {
		for i, it := range queue(st, bookID, domain.BorrowRequestStatusPending) {
			out = append(out, domain.HoldQueueEntry{
				Position:  i + 1,
				RequestID: it.RequestID,
				UserID:    st.requests[it.RequestID].UserID,
				Quantity:  it.Quantity,
				CreatedAt: it.CreatedAt,
			})
		}
		return nil
	})
	return out, err
}

type borrowRecordRepository struct{ *repos }

func (r *borrowRecordRepository) Create(ctx context.Context, rec *domain.BorrowRecord) error {
	return r.view(func(st *state) error {
		now := time.Now()
		rec.ID = st.nextID()
		rec.CreatedAt = now
		rec.UpdatedAt = now
		for i := range rec.Books {
			rec.Books[i].ID = st.nextID()
			rec.Books[i].BorrowRecordID = rec.ID
		}
		if rec.Ebook != nil {
			rec.Ebook.ID = st.nextID()
			rec.Ebook.BorrowRecordID = rec.ID
		}
		st.records[rec.ID] = copyRecord(*rec)
		return nil
	})
}

func copyRecord(rec domain.BorrowRecord) domain.BorrowRecord {
	rec.Books = slices.Clone(rec.Books)
	for i := range rec.Books {
		rec.Books[i].BookItem = nil
	}
	if rec.Ebook != nil {
		eb := *rec.Ebook
		eb.Ebook = nil
		rec.Ebook = &eb
	}
	return rec
}

// hydrate joins the current copy and book details onto a stored record.
func hydrate(st *state, rec domain.BorrowRecord) *domain.BorrowRecord {
	out := copyRecord(rec)
	for i := range out.Books {
		if it, ok := st.items[out.Books[i].BookItemID]; ok {
			if b, ok := st.books[it.BookID]; ok {
				it.Book = &domain.Book{ID: b.ID, Title: b.Title, AuthorName: b.AuthorName}
			}
			out.Books[i].BookItem = &it
		}
	}
	if out.Ebook != nil {
		for _, b := range st.books {
			if b.Ebook != nil && b.Ebook.ID == out.Ebook.EbookID {
				eb := *b.Ebook
				out.Ebook.Ebook = &eb
			}
		}
	}
	return &out
}

func (r *borrowRecordRepository) GetByID(ctx context.Context, id int64) (*domain.BorrowRecord, error) {
	var out *domain.BorrowRecord
	err := r.view(func(st *state) error {
		rec, ok := st.records[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = hydrate(st, rec)
		return nil
	})
	return out, err
}

func (r *borrowRecordRepository) GetForUpdate(ctx context.Context, id int64) (*domain.BorrowRecord, error) {
	return r.GetByID(ctx, id)
}

func (r *borrowRecordRepository) MarkReturned(ctx context.Context, id int64, returnedOn time.Time) error {
	return r.view(func(st *state) error {
		rec, ok := st.records[id]
		if !ok {
			return fmt.Errorf("borrow record %d: %w", id, domain.ErrNotFound)
		}
		rec.Status = domain.BorrowRecordStatusReturned
		rec.ActualReturnDate = &returnedOn
		rec.UpdatedAt = time.Now()
		st.records[id] = rec
		return nil
	})
}

func (r *borrowRecordRepository) HasOpenEbookLoan(ctx context.Context, userID, ebookID int64) (bool, error) {
	open := false
	err := r.view(func(st *state) error {
		for _, rec := range st.records {
			if rec.UserID == userID && rec.Ebook != nil && rec.Ebook.EbookID == ebookID &&
				rec.ActualReturnDate == nil && rec.DeletedAt == nil {
				open = true
			}
		}
		return nil
	})
	return open, err
}

func (r *borrowRecordRepository) ListOpenDueOn(ctx context.Context, day time.Time) ([]domain.BorrowRecord, error) {
	return r.listOpen(func(rec domain.BorrowRecord) bool { return sameDay(rec.ReturnDate, day) })
}

func (r *borrowRecordRepository) ListOpenOverdue(ctx context.Context, asOf time.Time) ([]domain.BorrowRecord, error) {
	return r.listOpen(func(rec domain.BorrowRecord) bool { return rec.ReturnDate.Before(asOf) })
}

func (r *borrowRecordRepository) listOpen(match func(domain.BorrowRecord) bool) ([]domain.BorrowRecord, error) {
	var out []domain.BorrowRecord
	err := r.view(func(st *state) error {
		for _, rec := range st.records {
			if rec.IsOpen() && match(rec) {
				out = append(out, copyRecord(rec))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

type paymentRepository struct{ *repos }

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	return r.view(func(st *state) error {
		p.ID = st.nextID()
		p.CreatedAt = time.Now()
		st.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepository) ListByRecord(ctx context.Context, recordID int64) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.view(func(st *state) error {
		for _, p := range st.payments {
			if p.BorrowRecordID == recordID {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

type policyRepository struct{ *repos }

func (r *policyRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	var out *domain.Policy
	err := r.view(func(st *state) error {
		p, ok := st.policies[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

type userRepository struct{ *repos }

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.view(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepository) AddViolationPoints(ctx context.Context, id int64, points int) error {
	return r.view(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		u.ViolationPoints += points
		st.users[id] = u
		return nil
	})
}

type notificationRepository struct{ *repos }

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.view(func(st *state) error {
		n.ID = st.nextID()
		n.CreatedOn = time.Now().Format("2006-01-02")
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Notification, int, error) {
	var out []domain.Notification
	total := 0
	err := r.view(func(st *state) error {
		var mine []domain.Notification
		for i := len(st.notifications) - 1; i >= 0; i-- {
			if st.notifications[i].UserID == userID {
				mine = append(mine, st.notifications[i])
			}
		}
		total = len(mine)
		if offset >= len(mine) {
			return nil
		}
		mine = mine[offset:]
		if limit > 0 && limit < len(mine) {
			mine = mine[:limit]
		}
		out = mine
		return nil
	})
	return out, total, err
}
