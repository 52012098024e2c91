package notification

import (
	"context"
	"fmt"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

// Emitter writes the in-app notification a provider receives for a new booking.
type Emitter interface {
	NotifyProviderOfBooking(ctx context.Context, booking *model.Booking) error
}

type emitter struct {
	repo      repository.NotificationRepository
	directory repository.DirectoryRepository
	log       *logger.Logger
}

func NewEmitter(repo repository.NotificationRepository, directory repository.DirectoryRepository, log *logger.Logger) Emitter {
	if log == nil {
		log = logger.Nop()
	}
	return &emitter{
		repo:      repo,
		directory: directory,
		log:       log,
	}
}

// NotifyProviderOfBooking is safe to repeat: a provider gets one notification
// per booking. Providers without a linked user are skipped.
func (e *emitter) NotifyProviderOfBooking(ctx context.Context, booking *model.Booking) error {
	provider, err := e.directory.GetProvider(ctx, booking.ProviderID)
	if err != nil {
		return errors.NewUpstreamUnavailable("notification", fmt.Errorf("failed to load provider: %w", err))
	}
	if provider.UserID == nil {
		e.log.Debug("provider has no user link, skipping notification",
			"booking_id", booking.ID.String(),
			"provider_id", provider.ID.String(),
		)
		return nil
	}

	svc, err := e.directory.GetService(ctx, booking.ServiceID)
	if err != nil {
		return errors.NewUpstreamUnavailable("notification", fmt.Errorf("failed to load service: %w", err))
	}

	customerName := (&model.Customer{}).DisplayName()
	if customer, err := e.directory.GetCustomer(ctx, booking.CustomerID); err == nil {
		customerName = customer.DisplayName()
	}

	notification := &model.Notification{
		UserID:        *provider.UserID,
		Type:          model.NotificationTypeBooking,
		ReferenceID:   booking.ID,
		ReferenceType: model.NotificationReferenceBooking,
		Message:       Message(customerName, svc.Name, booking),
	}

	created, err := e.repo.CreateIfAbsent(ctx, notification)
	if err != nil {
		return errors.NewUpstreamUnavailable("notification", err)
	}
	if created {
		e.log.Info("provider notified of booking",
			"booking_id", booking.ID.String(),
			"user_id", notification.UserID.String(),
		)
	}
	return nil
}

func Message(customerName, serviceName string, booking *model.Booking) string {
	return fmt.Sprintf("New booking from %s for %s on %s at %s",
		customerName, serviceName, booking.BookingDate.String(), booking.BookingTime.String())
}
