package http

import (
	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/service"
)

type requestedBookDTO struct {
	BookID   int64 `json:"bookId" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,min=1"`
}

type createBorrowRequestDTO struct {
	UserID    int64              `json:"userId" validate:"required,gt=0"`
	StartDate string             `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string             `json:"endDate" validate:"required,datetime=2006-01-02"`
	Items     []requestedBookDTO `json:"items" validate:"required,min=1,dive"`
}

func (d createBorrowRequestDTO) toInput() service.CreateBorrowRequestInput {
	items := make([]service.RequestedBook, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, service.RequestedBook{BookID: it.BookID, Quantity: it.Quantity})
	}
	return service.CreateBorrowRequestInput{
		UserID:    d.UserID,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		Items:     items,
	}
}

type createBorrowRecordDTO struct {
	UserID      int64   `json:"userId" validate:"required,gt=0"`
	BorrowDate  string  `json:"borrowDate" validate:"required,datetime=2006-01-02"`
	ReturnDate  string  `json:"returnDate" validate:"required,datetime=2006-01-02"`
	BookItemIDs []int64 `json:"bookItemIds" validate:"required,min=1,dive,gt=0"`
	RequestIDs  []int64 `json:"requestIds" validate:"omitempty,dive,gt=0"`
}

func (d createBorrowRecordDTO) toInput() service.CreateBorrowRecordInput {
	return service.CreateBorrowRecordInput{
		UserID:      d.UserID,
		BorrowDate:  d.BorrowDate,
		ReturnDate:  d.ReturnDate,
		BookItemIDs: d.BookItemIDs,
		RequestIDs:  d.RequestIDs,
	}
}

type borrowEbookDTO struct {
	UserID    int64  `json:"userId" validate:"required,gt=0"`
	BookID    int64  `json:"bookId" validate:"required,gt=0"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

func (d borrowEbookDTO) toInput() service.BorrowEbookInput {
	return service.BorrowEbookInput{
		UserID:    d.UserID,
		BookID:    d.BookID,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
	}
}

type violationDTO struct {
	BookItemID int64  `json:"bookItemId" validate:"required,gt=0"`
	PolicyID   string `json:"policyId" validate:"required"`
	Amount     int64  `json:"amount" validate:"gte=0"`
	DueDate    string `json:"dueDate" validate:"required,datetime=2006-01-02"`
}

type returnDTO struct {
	Violations       []violationDTO   `json:"violations" validate:"omitempty,dive"`
	ConditionUpdates map[int64]string `json:"conditionUpdates" validate:"omitempty,dive,keys,gt=0,endkeys,oneof=NEW GOOD WORN DAMAGED LOST"`
}

func (d returnDTO) toInput() service.ReturnInput {
	in := service.ReturnInput{}
	for _, v := range d.Violations {
		in.Violations = append(in.Violations, service.ViolationInput{
			BookItemID: v.BookItemID,
			PolicyID:   v.PolicyID,
			Amount:     v.Amount,
			DueDate:    v.DueDate,
		})
	}
	if len(d.ConditionUpdates) > 0 {
		in.ConditionUpdates = make(map[int64]domain.ItemCondition, len(d.ConditionUpdates))
		for id, cond := range d.ConditionUpdates {
			in.ConditionUpdates[id] = domain.ItemCondition(cond)
		}
	}
	return in
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Total         int                   `json:"total"`
	Page          int                   `json:"page"`
}
