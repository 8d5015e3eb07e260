package domain

// AllocationOutcome tags what a single hold-queue pass did for a book.
type AllocationOutcome string

const (
	AllocationApproved             AllocationOutcome = "APPROVED"
	AllocationNoEligibleRequest    AllocationOutcome = "NO_ELIGIBLE_REQUEST"
	AllocationInsufficientCapacity AllocationOutcome = "INSUFFICIENT_CAPACITY"
)

// AllocationResult is the value returned by the hold-queue allocator.
// RequestID is set for AllocationApproved and AllocationInsufficientCapacity
// (the request that was considered); ShortBookID names the first book that
// lacked capacity.
type AllocationResult struct {
	Outcome     AllocationOutcome `json:"outcome"`
	RequestID   int64             `json:"requestId,omitempty"`
	ShortBookID int64             `json:"shortBookId,omitempty"`
}

func Approved(requestID int64) AllocationResult {
	return AllocationResult{Outcome: AllocationApproved, RequestID: requestID}
}

func NoEligibleRequest() AllocationResult {
	return AllocationResult{Outcome: AllocationNoEligibleRequest}
}

func InsufficientCapacity(requestID, bookID int64) AllocationResult {
	return AllocationResult{Outcome: AllocationInsufficientCapacity, RequestID: requestID, ShortBookID: bookID}
}

func (r AllocationResult) IsApproved() bool { return r.Outcome == AllocationApproved }

// ProcessedBook reports which requests a return approved for one book.
type ProcessedBook struct {
	BookID           int64   `json:"bookId"`
	ApprovedRequests []int64 `json:"approvedRequests"`
}
