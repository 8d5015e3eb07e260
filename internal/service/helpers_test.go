package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"library-circulation-backend/internal/config"
	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/repository/memory"
	"library-circulation-backend/internal/service"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (n *recordingNotifier) Queue(ctx context.Context, note domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *recordingNotifier) Enqueue(ctx context.Context, note domain.Notification) error {
	n.Queue(ctx, note)
	return nil
}

func (n *recordingNotifier) ofType(t domain.NotificationType) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notification
	for _, note := range n.notes {
		if note.Type == t {
			out = append(out, note)
		}
	}
	return out
}

type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) ProcessHoldQueueForBook(ctx context.Context, tx repository.Tx, bookID int64) (domain.AllocationResult, error) {
	args := m.Called(ctx, tx, bookID)
	return args.Get(0).(domain.AllocationResult), args.Error(1)
}

// library wires every service over one in-memory store.
type library struct {
	store     *memory.Store
	notifier  *recordingNotifier
	clock     fixedClock
	allocator service.HoldQueueAllocator
	requests  service.BorrowRequestService
	records   service.BorrowRecordService
	ebooks    service.EbookService
	returns   service.ReturnService
	reminders service.ReminderService
}

var today = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func newLibrary(t *testing.T) *library {
	t.Helper()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	clock := fixedClock{now: today}
	allocator := service.NewHoldQueueAllocator(nil)
	return &library{
		store:     store,
		notifier:  notifier,
		clock:     clock,
		allocator: allocator,
		requests:  service.NewBorrowRequestService(store, allocator, notifier, 30),
		records:   service.NewBorrowRecordService(store, notifier, nil, 30),
		ebooks:    service.NewEbookService(store, notifier, nil, 30),
		returns: service.NewReturnService(store, allocator,
			service.NewStaticPolicyCatalog(config.DefaultPolicies()),
			notifier, clock, service.NewULIDGenerator(), nil),
		reminders: service.NewReminderService(store.BorrowRecords(), notifier, clock),
	}
}

func (l *library) reader(name string) domain.User {
	return l.store.AddUser(domain.User{Name: name, Email: name + "@example.com"})
}

// book adds a title with n available copies.
func (l *library) book(title string, n int) (domain.Book, []domain.BookItem) {
	b := l.store.AddBook(domain.Book{Title: title, AuthorName: "Author of " + title})
	items := make([]domain.BookItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, l.store.AddBookItem(domain.BookItem{BookID: b.ID, Code: title + "-" + string(rune('A'+i))}))
	}
	return b, items
}

func (l *library) request(t *testing.T, userID int64, items ...service.RequestedBook) *service.CreateBorrowRequestResult {
	t.Helper()
	res, err := l.requests.CreateBorrowRequest(context.Background(), service.CreateBorrowRequestInput{
		UserID:    userID,
		StartDate: "2026-03-10",
		EndDate:   "2026-03-24",
		Items:     items,
	})
	require.NoError(t, err)
	return res
}

func (l *library) borrow(t *testing.T, userID int64, itemIDs []int64, requestIDs ...int64) *service.CreateBorrowRecordResult {
	t.Helper()
	res, err := l.records.CreateBorrowRecord(context.Background(), service.CreateBorrowRecordInput{
		UserID:      userID,
		BorrowDate:  "2026-03-10",
		ReturnDate:  "2026-03-24",
		BookItemIDs: itemIDs,
		RequestIDs:  requestIDs,
	})
	require.NoError(t, err)
	return res
}

func (l *library) requestStatus(t *testing.T, id int64) domain.BorrowRequestStatus {
	t.Helper()
	req, err := l.store.BorrowRequests().GetByID(context.Background(), id)
	require.NoError(t, err)
	return req.Status
}

func (l *library) item(t *testing.T, id int64) domain.BookItem {
	t.Helper()
	items, err := l.store.BookItems().GetByIDs(context.Background(), []int64{id})
	require.NoError(t, err)
	require.Len(t, items, 1)
	return items[0]
}

func (l *library) setItemStatus(t *testing.T, id int64, status domain.ItemStatus) {
	t.Helper()
	err := l.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.BookItems().UpdateStatus(ctx, id, status)
	})
	require.NoError(t, err)
}

func want(bookID int64, qty int) service.RequestedBook {
	return service.RequestedBook{BookID: bookID, Quantity: qty}
}

func ids(items []domain.BookItem) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
