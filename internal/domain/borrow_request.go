package domain

import "time"

type BorrowRequestStatus string

const (
	BorrowRequestStatusPending   BorrowRequestStatus = "PENDING"
	BorrowRequestStatusApproved  BorrowRequestStatus = "APPROVED"
	BorrowRequestStatusRejected  BorrowRequestStatus = "REJECTED"
	BorrowRequestStatusFulfilled BorrowRequestStatus = "FULFILLED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s BorrowRequestStatus) IsTerminal() bool {
	return s == BorrowRequestStatusRejected || s == BorrowRequestStatusFulfilled
}

type BorrowRequest struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"userId"`
	StartDate time.Time           `json:"startDate"`
	EndDate   time.Time           `json:"endDate"`
	Status    BorrowRequestStatus `json:"status"`
	Items     []BorrowRequestItem `json:"items"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// BorrowRequestItem names a book, not a copy, and how many copies of it are
// wanted. Immutable once created.
type BorrowRequestItem struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"requestId"`
	BookID    int64     `json:"bookId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// QuantityByBook folds the request's items into book id -> copies wanted.
func (r *BorrowRequest) QuantityByBook() map[int64]int {
	out := make(map[int64]int, len(r.Items))
	for _, it := range r.Items {
		out[it.BookID] += it.Quantity
	}
	return out
}

// HoldQueueEntry is one pending request waiting on a book, with its FIFO position.
type HoldQueueEntry struct {
	Position  int       `json:"position"`
	RequestID int64     `json:"requestId"`
	UserID    int64     `json:"userId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

type HoldQueue struct {
	BookID           int64            `json:"bookId"`
	AvailableCopies  int              `json:"availableCopies"`
	ApprovedQuantity int              `json:"approvedQuantity"`
	Entries          []HoldQueueEntry `json:"entries"`
}
