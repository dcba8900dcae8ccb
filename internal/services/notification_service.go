package services

import (
	"context"
	"sync"
	"time"

	"racebeacon/internal/models"
	"racebeacon/pkg/logger"
)

// EmergencyNotifier forwards emergency transitions to systems outside the
// websocket fan-out (coordinator SMS, redis subscribers).
type EmergencyNotifier interface {
	NotifyEmergency(ctx context.Context, emergency *models.Emergency) error
}

// NotificationService runs notifiers on a background worker so slow external
// calls never hold the state lock or delay a client's event loop.
type NotificationService struct {
	notifiers []EmergencyNotifier
	queue     chan *models.Emergency
	timeout   time.Duration
	log       *logger.Logger
	wg        sync.WaitGroup
}

func NewNotificationService(log *logger.Logger, bufferSize int, timeout time.Duration, notifiers ...EmergencyNotifier) *NotificationService {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationService{
		notifiers: notifiers,
		queue:     make(chan *models.Emergency, bufferSize),
		timeout:   timeout,
		log:       log,
	}
}

// Start runs the worker until ctx is cancelled, then drains what is queued.
func (s *NotificationService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case emergency := <-s.queue:
				s.deliver(emergency)
			case <-ctx.Done():
				for {
					select {
					case emergency := <-s.queue:
						s.deliver(emergency)
					default:
						return
					}
				}
			}
		}
	}()
}

// Wait blocks until the worker has exited.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

// Enqueue never blocks; when the queue is full the notification is dropped
// and logged.
func (s *NotificationService) Enqueue(emergency *models.Emergency) bool {
	if len(s.notifiers) == 0 || emergency == nil {
		return false
	}
	select {
	case s.queue <- emergency:
		return true
	default:
		s.log.WithEmergencyID(emergency.ID).Warn("Notification queue full, dropping emergency notification")
		return false
	}
}

func (s *NotificationService) deliver(emergency *models.Emergency) {
	for _, notifier := range s.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := notifier.NotifyEmergency(ctx, emergency); err != nil {
			s.log.WithEmergencyID(emergency.ID).WithError(err).Error("Failed to deliver emergency notification")
		}
		cancel()
	}
}
