package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/utils"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func SystemClock() Clock { return systemClock{} }

type ulidGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator returns a generator of monotonic ULIDs, safe for concurrent use.
func NewULIDGenerator() ReferenceGenerator {
	return &ulidGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ulidGenerator) NewReference() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy).String()
}

type staticPolicyCatalog struct {
	policies map[string]domain.PolicyMetadata
}

// NewStaticPolicyCatalog serves policy metadata from a fixed table, usually
// the one loaded from configuration.
func NewStaticPolicyCatalog(policies map[string]domain.PolicyMetadata) PolicyCatalog {
	return &staticPolicyCatalog{policies: maps.Clone(policies)}
}

func (c *staticPolicyCatalog) ViolationPolicyMetadata(policyID string) (domain.PolicyMetadata, bool) {
	meta, ok := c.policies[policyID]
	return meta, ok
}

// parseLoanPeriod validates a start/end date pair and the maximum span.
func parseLoanPeriod(startField, start, endField, end string, maxDays int) (time.Time, time.Time, error) {
	s, err := utils.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewValidationError(fmt.Sprintf("%s must be a date in YYYY-MM-DD format", startField), start)
	}
	e, err := utils.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewValidationError(fmt.Sprintf("%s must be a date in YYYY-MM-DD format", endField), end)
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, domain.NewValidationError(fmt.Sprintf("%s must not be before %s", endField, startField))
	}
	if maxDays > 0 && utils.DaysBetween(s, e) > maxDays {
		return time.Time{}, time.Time{}, domain.NewValidationError(fmt.Sprintf("loan period must not exceed %d days", maxDays))
	}
	return s, e, nil
}

// requireReader loads the user and checks the reader role.
func requireReader(ctx context.Context, users repository.UserRepository, userID int64) (*domain.User, error) {
	user, err := users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewNotFoundError("user not found", fmt.Sprint(userID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if !user.IsReader() {
		return nil, domain.NewValidationError("user is not a reader", fmt.Sprint(userID))
	}
	return user, nil
}

func notifyAll(ctx context.Context, notifier Notifier, notes []domain.Notification) {
	if notifier == nil {
		return
	}
	for _, n := range notes {
		notifier.Queue(ctx, n)
	}
}

func approvedNotification(req *domain.BorrowRequest) domain.Notification {
	return domain.Notification{
		UserID:  req.UserID,
		Title:   "Borrow request approved",
		Message: fmt.Sprintf("Your borrow request #%d has been approved. Your copies are ready for pickup.", req.ID),
		Type:    domain.NotificationTypeRequestApproved,
		Attributes: map[string]string{
			"request_id": fmt.Sprint(req.ID),
		},
	}
}

// approvedRequests loads the requests the allocator just approved so their
// owners can be notified once the transaction commits.
func approvedRequests(ctx context.Context, tx repository.Tx, results []domain.AllocationResult) ([]domain.Notification, error) {
	var notes []domain.Notification
	for _, r := range results {
		if !r.IsApproved() {
			continue
		}
		req, err := tx.BorrowRequests().GetByID(ctx, r.RequestID)
		if err != nil {
			return nil, fmt.Errorf("failed to load approved request %d: %w", r.RequestID, err)
		}
		notes = append(notes, approvedNotification(req))
	}
	return notes, nil
}

// distinctSorted returns ids in ascending order without duplicates.
func distinctSorted(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
