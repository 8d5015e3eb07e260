package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/service"
)

func TestReturnService_ReturnBorrowRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("Return approves the next request in the queue", func(t *testing.T) {
		l := newLibrary(t)
		alice, bob := l.reader("alice"), l.reader("bob")
		book, items := l.book("Dune", 1)
		loan := l.borrow(t, alice.ID, ids(items))
		waiting := l.request(t, bob.ID, want(book.ID, 1))
		require.False(t, waiting.Approved)

		res, err := l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, service.ReturnInput{})
		require.NoError(t, err)

		assert.Equal(t, []domain.ProcessedBook{{BookID: book.ID, ApprovedRequests: []int64{waiting.BorrowRequest.ID}}}, res.ProcessedBooks)
		assert.Equal(t, domain.BorrowRequestStatusApproved, l.requestStatus(t, waiting.BorrowRequest.ID))
		assert.Equal(t, domain.ItemStatusAvailable, l.item(t, items[0].ID).Status)
		assert.Equal(t, domain.BorrowRecordStatusReturned, res.BorrowRecord.Status)
		require.NotNil(t, res.BorrowRecord.ActualReturnDate)
		assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), *res.BorrowRecord.ActualReturnDate)
		assert.Empty(t, res.Payments)

		approved := l.notifier.ofType(domain.NotificationTypeRequestApproved)
		require.Len(t, approved, 1)
		assert.Equal(t, bob.ID, approved[0].UserID)
		assert.Len(t, l.notifier.ofType(domain.NotificationTypeBookReturned), 1)
		assert.Empty(t, l.notifier.ofType(domain.NotificationTypeViolation))
	})

	t.Run("Violation points are summed", func(t *testing.T) {
		l := newLibrary(t)
		alice := l.reader("alice")
		_, items := l.book("Dune", 2)
		loan := l.borrow(t, alice.ID, ids(items))

		res, err := l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, service.ReturnInput{
			Violations: []service.ViolationInput{
				{BookItemID: items[0].ID, PolicyID: domain.PolicyDamagedBook, Amount: 1500, DueDate: "2026-03-31"},
				{BookItemID: items[1].ID, PolicyID: domain.PolicyLostBook, Amount: 3000, DueDate: "2026-03-31"},
			},
		})
		require.NoError(t, err)

		user, err := l.store.Users().GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 15, user.ViolationPoints)

		require.Len(t, res.Payments, 2)
		for _, p := range res.Payments {
			assert.False(t, p.IsPaid)
			assert.Len(t, p.Reference, 26)
			assert.Equal(t, time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC), p.DueDate)
			assert.Equal(t, loan.BorrowRecord.ID, p.BorrowRecordID)
		}
		assert.NotEqual(t, res.Payments[0].Reference, res.Payments[1].Reference)

		damaged := l.item(t, items[0].ID)
		assert.Equal(t, domain.ItemConditionDamaged, damaged.Condition)
		assert.Equal(t, domain.ItemStatusRetired, damaged.Status)
		lost := l.item(t, items[1].ID)
		assert.Equal(t, domain.ItemConditionLost, lost.Condition)
		assert.Equal(t, domain.ItemStatusLost, lost.Status)

		notes := l.notifier.ofType(domain.NotificationTypeViolation)
		require.Len(t, notes, 1)
		assert.Equal(t, "15", notes[0].Attributes["points"])
	})

	t.Run("Lost copy does not free capacity", func(t *testing.T) {
		l := newLibrary(t)
		alice, bob := l.reader("alice"), l.reader("bob")
		book, items := l.book("Dune", 1)
		loan := l.borrow(t, alice.ID, ids(items))
		waiting := l.request(t, bob.ID, want(book.ID, 1))

		res, err := l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, service.ReturnInput{
			Violations: []service.ViolationInput{{BookItemID: items[0].ID, PolicyID: domain.PolicyLostBook, Amount: 2500, DueDate: "2026-04-01"}},
		})
		require.NoError(t, err)

		assert.Equal(t, []domain.ProcessedBook{{BookID: book.ID, ApprovedRequests: []int64{}}}, res.ProcessedBooks)
		assert.Equal(t, domain.BorrowRequestStatusPending, l.requestStatus(t, waiting.BorrowRequest.ID))
		assert.Equal(t, domain.ItemStatusLost, l.item(t, items[0].ID).Status)

		user, err := l.store.Users().GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, user.ViolationPoints)
	})

	t.Run("Condition updates without violations", func(t *testing.T) {
		l := newLibrary(t)
		alice := l.reader("alice")
		_, items := l.book("Dune", 1)
		loan := l.borrow(t, alice.ID, ids(items))

		_, err := l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, service.ReturnInput{
			ConditionUpdates: map[int64]domain.ItemCondition{items[0].ID: domain.ItemConditionWorn},
		})
		require.NoError(t, err)

		it := l.item(t, items[0].ID)
		assert.Equal(t, domain.ItemConditionWorn, it.Condition)
		assert.Equal(t, domain.ItemStatusAvailable, it.Status)
	})

	t.Run("Explicit condition overrides the policy fallback", func(t *testing.T) {
		l := newLibrary(t)
		alice := l.reader("alice")
		_, items := l.book("Dune", 1)
		loan := l.borrow(t, alice.ID, ids(items))

		_, err := l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, service.ReturnInput{
			Violations:       []service.ViolationInput{{BookItemID: items[0].ID, PolicyID: domain.PolicyDamagedBook, Amount: 500, DueDate: "2026-03-31"}},
			ConditionUpdates: map[int64]domain.ItemCondition{items[0].ID: domain.ItemConditionWorn},
		})
		require.NoError(t, err)

		it := l.item(t, items[0].ID)
		assert.Equal(t, domain.ItemConditionWorn, it.Condition)
		assert.Equal(t, domain.ItemStatusAvailable, it.Status)
	})

	t.Run("Second return is rejected without side effects", func(t *testing.T) {
		l := newLibrary(t)
		alice := l.reader("alice")
		_, items := l.book("Dune", 1)
		loan := l.borrow(t, alice.ID, ids(items))
		in := service.ReturnInput{
			Violations: []service.ViolationInput{{BookItemID: items[0].ID, PolicyID: domain.PolicyWornBook, Amount: 100, DueDate: "2026-03-31"}},
		}

		_, err := l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, in)
		require.NoError(t, err)
		_, err = l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, in)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.Contains(t, err.Error(), "already returned")

		payments, err := l.store.Payments().ListByRecord(ctx, loan.BorrowRecord.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
		user, err := l.store.Users().GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, user.ViolationPoints)
	})

	t.Run("Failures roll back the whole return", func(t *testing.T) {
		l := newLibrary(t)
		alice := l.reader("alice")
		_, items := l.book("Dune", 2)
		_, strangers := l.book("Emma", 1)
		loan := l.borrow(t, alice.ID, ids(items))
		l.store.AddPolicy(domain.Policy{ID: "LATE_RETURN", Name: "Late return"})

		tests := []struct {
			name       string
			violations []service.ViolationInput
			kind       domain.ErrorKind
		}{
			{"item not on the record", []service.ViolationInput{{BookItemID: strangers[0].ID, PolicyID: domain.PolicyLostBook, DueDate: "2026-03-31"}}, domain.ErrorKindValidation},
			{"policy without a row", []service.ViolationInput{
				{BookItemID: items[0].ID, PolicyID: domain.PolicyWornBook, Amount: 100, DueDate: "2026-03-31"},
				{BookItemID: items[1].ID, PolicyID: "MISSING", DueDate: "2026-03-31"},
			}, domain.ErrorKindNotFound},
			{"policy unknown to the catalog", []service.ViolationInput{
				{BookItemID: items[0].ID, PolicyID: domain.PolicyWornBook, Amount: 100, DueDate: "2026-03-31"},
				{BookItemID: items[1].ID, PolicyID: "LATE_RETURN", DueDate: "2026-03-31"},
			}, domain.ErrorKindValidation},
			{"negative amount", []service.ViolationInput{{BookItemID: items[0].ID, PolicyID: domain.PolicyWornBook, Amount: -1, DueDate: "2026-03-31"}}, domain.ErrorKindValidation},
			{"bad due date", []service.ViolationInput{{BookItemID: items[0].ID, PolicyID: domain.PolicyWornBook, DueDate: "31.03.2026"}}, domain.ErrorKindValidation},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, service.ReturnInput{Violations: tt.violations})
				assert.Equal(t, tt.kind, domain.KindOf(err), "error: %v", err)
			})
		}

		rec, err := l.store.BorrowRecords().GetByID(ctx, loan.BorrowRecord.ID)
		require.NoError(t, err)
		assert.True(t, rec.IsOpen())
		payments, err := l.store.Payments().ListByRecord(ctx, loan.BorrowRecord.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
		assert.Equal(t, domain.ItemStatusOnBorrow, l.item(t, items[0].ID).Status)
		user, err := l.store.Users().GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Zero(t, user.ViolationPoints)
	})

	t.Run("Unknown condition", func(t *testing.T) {
		l := newLibrary(t)
		alice := l.reader("alice")
		_, items := l.book("Dune", 1)
		loan := l.borrow(t, alice.ID, ids(items))

		_, err := l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, service.ReturnInput{
			ConditionUpdates: map[int64]domain.ItemCondition{items[0].ID: "SOGGY"},
		})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Unknown record", func(t *testing.T) {
		l := newLibrary(t)
		_, err := l.returns.ReturnBorrowRecord(ctx, 999, service.ReturnInput{})
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestReturnService_ConcurrentReturnsApplyOnce(t *testing.T) {
	ctx := context.Background()
	l := newLibrary(t)
	alice, bob := l.reader("alice"), l.reader("bob")
	book, items := l.book("Dune", 2)
	loan := l.borrow(t, alice.ID, ids(items))
	waiting := l.request(t, bob.ID, want(book.ID, 2))
	in := service.ReturnInput{
		Violations: []service.ViolationInput{{BookItemID: items[0].ID, PolicyID: domain.PolicyWornBook, Amount: 100, DueDate: "2026-03-31"}},
	}

	const callers = 8
	results := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, results[i] = l.returns.ReturnBorrowRecord(ctx, loan.BorrowRecord.ID, in)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, domain.IsValidation(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	payments, err := l.store.Payments().ListByRecord(ctx, loan.BorrowRecord.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	user, err := l.store.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, user.ViolationPoints)
	assert.Equal(t, domain.BorrowRequestStatusApproved, l.requestStatus(t, waiting.BorrowRequest.ID))
	assert.Len(t, l.notifier.ofType(domain.NotificationTypeRequestApproved), 1)
}

func TestReturnService_ConcurrentReturnsOfDifferentRecordsShareCapacity(t *testing.T) {
	ctx := context.Background()
	l := newLibrary(t)
	alice, bob, carol, dave := l.reader("alice"), l.reader("bob"), l.reader("carol"), l.reader("dave")
	book, items := l.book("Dune", 2)
	first := l.borrow(t, alice.ID, []int64{items[0].ID})
	second := l.borrow(t, bob.ID, []int64{items[1].ID})

	// Each waiting request needs both copies, so the two returns together can
	// satisfy only one of them.
	carolReq := l.request(t, carol.ID, want(book.ID, 2))
	daveReq := l.request(t, dave.ID, want(book.ID, 2))
	require.False(t, carolReq.Approved)
	require.False(t, daveReq.Approved)

	var g errgroup.Group
	for _, rec := range []int64{first.BorrowRecord.ID, second.BorrowRecord.ID} {
		g.Go(func() error {
			_, err := l.returns.ReturnBorrowRecord(ctx, rec, service.ReturnInput{})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, domain.BorrowRequestStatusApproved, l.requestStatus(t, carolReq.BorrowRequest.ID))
	assert.Equal(t, domain.BorrowRequestStatusPending, l.requestStatus(t, daveReq.BorrowRequest.ID))

	promised, err := l.store.BorrowRequests().ApprovedQuantity(ctx, book.ID)
	require.NoError(t, err)
	available, err := l.store.BookItems().CountAvailable(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, promised)
	assert.LessOrEqual(t, promised, available)
	assert.Len(t, l.notifier.ofType(domain.NotificationTypeRequestApproved), 1)
}
