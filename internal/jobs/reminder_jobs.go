package jobs

import (
	"context"

	"library-circulation-backend/internal/logger"
)

// SendDueReminders notifies readers whose loans are due tomorrow
func (jr *JobRunner) SendDueReminders() {
	jr.runWithRecovery("SendDueReminders", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		count, err := jr.services.Reminders.SendDueReminders(ctx)
		if err != nil {
			logger.Error("Failed to send due reminders", "queued", count, "error", err)
			return
		}
		logger.Info("Due reminders queued", "count", count)
	})
}

// SendOverdueReminders notifies readers with loans past their return date
func (jr *JobRunner) SendOverdueReminders() {
	jr.runWithRecovery("SendOverdueReminders", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		count, err := jr.services.Reminders.SendOverdueReminders(ctx)
		if err != nil {
			logger.Error("Failed to send overdue reminders", "queued", count, "error", err)
			return
		}
		logger.Info("Overdue reminders queued", "count", count)
	})
}
