package email

import (
	"context"
	"fmt"

	"github.com/ZondaOne/rhivo-app-sub003/internal/kafka"
	"go.uber.org/zap"
)

const slotLayout = "2006-01-02 15:04 MST"

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender hands notifications to the outbound mail system. Delivery is logged only.
type Sender struct {
	logger *zap.Logger
}

func NewSender(logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	msg, ok := Compose(event)
	if !ok {
		s.logger.Debug("no email for event",
			zap.String("type", string(event.Type)),
			zap.String("appointment_id", event.AppointmentID))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("email sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("appointment_id", event.AppointmentID))
	return nil
}

// Compose renders the guest notification for event. Events without a guest email, and
// holds that were never committed, produce no message.
func Compose(event kafka.BookingEvent) (Message, bool) {
	if event.GuestEmail == "" {
		return Message{}, false
	}

	slot := fmt.Sprintf("%s to %s", event.SlotStart.Format(slotLayout), event.SlotEnd.Format(slotLayout))
	msg := Message{To: event.GuestEmail}
	switch event.Type {
	case kafka.EventAppointmentCreated:
		msg.Subject = "Your appointment is confirmed"
		msg.Body = fmt.Sprintf("Your appointment on %s is confirmed.", slot)
	case kafka.EventAppointmentUpdated:
		msg.Subject = "Your appointment was changed"
		msg.Body = fmt.Sprintf("Your appointment now takes place on %s.", slot)
	case kafka.EventAppointmentCanceled:
		msg.Subject = "Your appointment was canceled"
		msg.Body = fmt.Sprintf("Your appointment on %s has been canceled.", slot)
	case kafka.EventAppointmentNoShow:
		msg.Subject = "We missed you"
		msg.Body = fmt.Sprintf("You were marked as absent for your appointment on %s.", slot)
	default:
		return Message{}, false
	}
	return msg, true
}
