package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-support/internal/service"
)

// StartNotificationWorker registers notification handlers on the
// dispatcher. Handlers run synchronously after each committed mutation.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if logger != nil {
		logger.Info("notification handlers registered")
	}
}
