package domain

type NotificationType string

const (
	NotificationTypeRequestApproved NotificationType = "BORROW_REQUEST_APPROVED"
	NotificationTypeRequestRejected NotificationType = "BORROW_REQUEST_REJECTED"
	NotificationTypeBorrowCreated   NotificationType = "BORROW_RECORD_CREATED"
	NotificationTypeEbookBorrowed   NotificationType = "EBOOK_BORROWED"
	NotificationTypeBookReturned    NotificationType = "BOOK_RETURNED"
	NotificationTypeViolation       NotificationType = "VIOLATION_RECORDED"
	NotificationTypeDueReminder     NotificationType = "DUE_REMINDER"
	NotificationTypeOverdue         NotificationType = "OVERDUE_REMINDER"
)

type Notification struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"userId"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Type       NotificationType  `json:"type"`
	IsRead     bool              `json:"isRead"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedOn  string            `json:"createdOn"`
}
