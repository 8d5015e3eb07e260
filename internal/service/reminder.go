package service

import (
	"context"
	"fmt"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/utils"
)

type reminderService struct {
	records  repository.BorrowRecordRepository
	notifier BatchNotifier
	clock    Clock
}

func NewReminderService(records repository.BorrowRecordRepository, notifier BatchNotifier, clock Clock) ReminderService {
	return &reminderService{records: records, notifier: notifier, clock: clock}
}

// SendDueReminders notifies readers whose open loans are due tomorrow.
func (s *reminderService) SendDueReminders(ctx context.Context) (int, error) {
	logger.EnterMethod("reminderService.SendDueReminders")

	tomorrow := utils.StartOfDay(s.clock.Now()).AddDate(0, 0, 1)
	records, err := s.records.ListOpenDueOn(ctx, tomorrow)
	if err != nil {
		logger.ExitMethodWithError("reminderService.SendDueReminders", err)
		return 0, fmt.Errorf("failed to list loans due on %s: %w", utils.FormatDate(tomorrow), err)
	}

	notes := make([]domain.Notification, 0, len(records))
	for _, rec := range records {
		notes = append(notes, domain.Notification{
			UserID:  rec.UserID,
			Title:   "Loan due tomorrow",
			Message: fmt.Sprintf("Borrow record #%d is due on %s.", rec.ID, utils.FormatDate(rec.ReturnDate)),
			Type:    domain.NotificationTypeDueReminder,
			Attributes: map[string]string{
				"borrow_record_id": fmt.Sprint(rec.ID),
				"return_date":      utils.FormatDate(rec.ReturnDate),
			},
		})
	}

	sent, err := s.enqueueAll(ctx, notes)
	if err != nil {
		logger.ExitMethodWithError("reminderService.SendDueReminders", err, "sent", sent, "total", len(notes))
		return sent, fmt.Errorf("queued %d of %d due reminders: %w", sent, len(notes), err)
	}
	logger.ExitMethod("reminderService.SendDueReminders", "count", sent)
	return sent, nil
}

// SendOverdueReminders notifies readers whose open loans were due before today.
// Record status is left BORROWED; overdue is derived from the return date.
func (s *reminderService) SendOverdueReminders(ctx context.Context) (int, error) {
	logger.EnterMethod("reminderService.SendOverdueReminders")

	today := utils.StartOfDay(s.clock.Now())
	records, err := s.records.ListOpenOverdue(ctx, today)
	if err != nil {
		logger.ExitMethodWithError("reminderService.SendOverdueReminders", err)
		return 0, fmt.Errorf("failed to list overdue loans: %w", err)
	}

	notes := make([]domain.Notification, 0, len(records))
	for _, rec := range records {
		days := utils.DaysBetween(rec.ReturnDate, today)
		notes = append(notes, domain.Notification{
			UserID:  rec.UserID,
			Title:   "Loan overdue",
			Message: fmt.Sprintf("Borrow record #%d was due on %s and is %d day(s) overdue.", rec.ID, utils.FormatDate(rec.ReturnDate), days),
			Type:    domain.NotificationTypeOverdue,
			Attributes: map[string]string{
				"borrow_record_id": fmt.Sprint(rec.ID),
				"days_overdue":     fmt.Sprint(days),
			},
		})
	}

	sent, err := s.enqueueAll(ctx, notes)
	if err != nil {
		logger.ExitMethodWithError("reminderService.SendOverdueReminders", err, "sent", sent, "total", len(notes))
		return sent, fmt.Errorf("queued %d of %d overdue reminders: %w", sent, len(notes), err)
	}
	logger.ExitMethod("reminderService.SendOverdueReminders", "count", sent)
	return sent, nil
}

// enqueueAll stops at the first failure and reports how many went through.
func (s *reminderService) enqueueAll(ctx context.Context, notes []domain.Notification) (int, error) {
	for i, n := range notes {
		if err := s.notifier.Enqueue(ctx, n); err != nil {
			return i, err
		}
	}
	return len(notes), nil
}
