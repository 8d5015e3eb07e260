package domain

import "time"

const (
	PolicyLostBook    = "LOST_BOOK"
	PolicyDamagedBook = "DAMAGED_BOOK"
	PolicyWornBook    = "WORN_BOOK"
)

// Policy is a row of the policies table, keyed by its string id.
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PolicyMetadata is the static scoring attached to a violation policy.
type PolicyMetadata struct {
	Points         int `json:"points" yaml:"points"`
	PenaltyPercent int `json:"penaltyPercent" yaml:"penalty_percent"`
}

// Violation is a charge the staff records against one returned copy.
type Violation struct {
	BookItemID int64     `json:"bookItemId"`
	PolicyID   string    `json:"policyId"`
	Amount     int64     `json:"amount"`
	DueDate    time.Time `json:"dueDate"`
}

type Payment struct {
	ID             int64     `json:"id"`
	Reference      string    `json:"reference"`
	UserID         int64     `json:"userId"`
	BorrowRecordID int64     `json:"borrowRecordId"`
	BookItemID     int64     `json:"bookItemId"`
	PolicyID       string    `json:"policyId"`
	Amount         int64     `json:"amount"`
	DueDate        time.Time `json:"dueDate"`
	IsPaid         bool      `json:"isPaid"`
	CreatedAt      time.Time `json:"createdAt"`
}
