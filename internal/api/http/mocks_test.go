package http_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/service"
)

type MockBorrowRequestService struct {
	mock.Mock
}

func (m *MockBorrowRequestService) CreateBorrowRequest(ctx context.Context, in service.CreateBorrowRequestInput) (*service.CreateBorrowRequestResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreateBorrowRequestResult), args.Error(1)
}

func (m *MockBorrowRequestService) RejectBorrowRequest(ctx context.Context, requestID int64) (*domain.BorrowRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BorrowRequest), args.Error(1)
}

func (m *MockBorrowRequestService) GetBorrowRequest(ctx context.Context, requestID int64) (*domain.BorrowRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BorrowRequest), args.Error(1)
}

func (m *MockBorrowRequestService) GetHoldQueue(ctx context.Context, bookID int64) (*domain.HoldQueue, error) {
	args := m.Called(ctx, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HoldQueue), args.Error(1)
}

type MockBorrowRecordService struct {
	mock.Mock
}

func (m *MockBorrowRecordService) CreateBorrowRecord(ctx context.Context, in service.CreateBorrowRecordInput) (*service.CreateBorrowRecordResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreateBorrowRecordResult), args.Error(1)
}

func (m *MockBorrowRecordService) GetBorrowRecord(ctx context.Context, recordID int64) (*domain.BorrowRecord, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BorrowRecord), args.Error(1)
}

type MockEbookService struct {
	mock.Mock
}

func (m *MockEbookService) BorrowEbook(ctx context.Context, in service.BorrowEbookInput) (*service.BorrowEbookResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BorrowEbookResult), args.Error(1)
}

type MockReturnService struct {
	mock.Mock
}

func (m *MockReturnService) ReturnBorrowRecord(ctx context.Context, recordID int64, in service.ReturnInput) (*service.ReturnResult, error) {
	args := m.Called(ctx, recordID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReturnResult), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) ListNotifications(ctx context.Context, userID int64, page, pageSize int) ([]domain.Notification, int, error) {
	args := m.Called(ctx, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Notification), args.Int(1), args.Error(2)
}
