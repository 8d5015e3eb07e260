package domain

import "time"

type BorrowRecordStatus string

const (
	BorrowRecordStatusBorrowed BorrowRecordStatus = "BORROWED"
	BorrowRecordStatusReturned BorrowRecordStatus = "RETURNED"
	BorrowRecordStatusOverdue  BorrowRecordStatus = "OVERDUE"
)

type BorrowRecord struct {
	ID               int64              `json:"id"`
	UserID           int64              `json:"userId"`
	BorrowDate       time.Time          `json:"borrowDate"`
	ReturnDate       time.Time          `json:"returnDate"`
	ActualReturnDate *time.Time         `json:"actualReturnDate,omitempty"`
	RenewalCount     int                `json:"renewalCount"`
	Status           BorrowRecordStatus `json:"status"`
	Books            []BorrowBook       `json:"books,omitempty"`
	Ebook            *BorrowEbook       `json:"ebook,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
	DeletedAt        *time.Time         `json:"deletedAt,omitempty"`
}

// IsOpen reports whether the record can still be returned.
func (r *BorrowRecord) IsOpen() bool {
	return r.DeletedAt == nil && r.Status == BorrowRecordStatusBorrowed && r.ActualReturnDate == nil
}

// BorrowBook links a record to one physical copy. The row is kept after return.
type BorrowBook struct {
	ID             int64     `json:"id"`
	BorrowRecordID int64     `json:"borrowRecordId"`
	BookItemID     int64     `json:"bookItemId"`
	BookItem       *BookItem `json:"bookItem,omitempty"`
}

type BorrowEbook struct {
	ID             int64  `json:"id"`
	BorrowRecordID int64  `json:"borrowRecordId"`
	EbookID        int64  `json:"ebookId"`
	Ebook          *Ebook `json:"ebook,omitempty"`
}
