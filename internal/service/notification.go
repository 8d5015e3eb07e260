package service

import (
	"context"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type notificationService struct {
	noteRepo repository.NotificationRepository
}

func NewNotificationService(noteRepo repository.NotificationRepository) NotificationService {
	return &notificationService{noteRepo: noteRepo}
}

// ListNotifications pages through a reader's inbox, newest first. Pages start at 1.
func (s *notificationService) ListNotifications(ctx context.Context, userID int64, page, pageSize int) ([]domain.Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	offset := (page - 1) * pageSize
	notes, total, err := s.noteRepo.ListByUser(ctx, userID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	if notes == nil {
		notes = []domain.Notification{}
	}
	return notes, total, nil
}
