package services

import (
	"context"
	"errors"
	"fmt"

	"racebeacon/internal/models"
	"racebeacon/pkg/sms"
)

// SMSNotifier texts race coordinators when an emergency is raised and when
// one is closed by the system without a staff resolution.
type SMSNotifier struct {
	provider   sms.SMSProvider
	recipients []string
}

func NewSMSNotifier(provider sms.SMSProvider, recipients []string) *SMSNotifier {
	return &SMSNotifier{
		provider:   provider,
		recipients: recipients,
	}
}

func (n *SMSNotifier) NotifyEmergency(ctx context.Context, emergency *models.Emergency) error {
	message, ok := smsMessage(emergency)
	if !ok || len(n.recipients) == 0 {
		return nil
	}

	requests := make([]*sms.SMSRequest, 0, len(n.recipients))
	for _, to := range n.recipients {
		requests = append(requests, &sms.SMSRequest{
			To:      to,
			Message: message,
			Type:    "transactional",
		})
	}

	responses, err := n.provider.SendBulkSMS(ctx, requests)
	if err != nil {
		return fmt.Errorf("failed to send emergency sms: %w", err)
	}

	var errs []error
	for i, resp := range responses {
		if resp != nil && resp.Error != "" {
			errs = append(errs, fmt.Errorf("sms to %s: %s", requests[i].To, resp.Error))
		}
	}
	return errors.Join(errs...)
}

func smsMessage(emergency *models.Emergency) (string, bool) {
	location := "location unknown"
	if emergency.Location != nil {
		location = emergency.Location.String()
	}

	switch emergency.Status {
	case models.EmergencyStatusRaised:
		msg := fmt.Sprintf("EMERGENCY %s raised by %s at %s", emergency.ID, emergency.RaiserName, location)
		if emergency.Description != "" {
			msg += ": " + emergency.Description
		}
		return msg, true
	case models.EmergencyStatusAutoResolved:
		return fmt.Sprintf("Emergency %s (%s) auto-resolved: %s", emergency.ID, emergency.RaiserName, emergency.AutoResolveCause), true
	default:
		return "", false
	}
}
