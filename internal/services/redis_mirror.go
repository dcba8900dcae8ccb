package services

import (
	"context"
	"fmt"
	"time"

	"racebeacon/internal/models"
	"racebeacon/internal/utils"
)

type redisPublisher interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, message interface{}) error
	GeoAdd(ctx context.Context, key string, member string, lng, lat float64) error
}

// RedisMirror publishes broker state for consumers outside this process. It
// is write-only: nothing is ever read back, so state still lives in memory.
type RedisMirror struct {
	client    redisPublisher
	statusTTL time.Duration
}

func NewRedisMirror(client redisPublisher, statusTTL time.Duration) *RedisMirror {
	return &RedisMirror{
		client:    client,
		statusTTL: statusTTL,
	}
}

func (m *RedisMirror) NotifyEmergency(ctx context.Context, emergency *models.Emergency) error {
	if err := m.client.Publish(ctx, utils.RedisEmergencyChannel, emergency); err != nil {
		return fmt.Errorf("failed to publish emergency %s: %w", emergency.ID, err)
	}
	return nil
}

// PublishStatus stores the aggregate counts and rebuilds the geo set of staff
// who share their location.
func (m *RedisMirror) PublishStatus(ctx context.Context, status models.SystemStatus, sessions []models.SessionView) error {
	if err := m.client.Set(ctx, utils.RedisStatusKey, status, m.statusTTL); err != nil {
		return fmt.Errorf("failed to store status: %w", err)
	}

	if err := m.client.Delete(ctx, utils.RedisStaffLocationsKey); err != nil {
		return fmt.Errorf("failed to reset staff locations: %w", err)
	}
	for _, view := range sessions {
		if view.Role != models.RoleStaff || view.Location == nil {
			continue
		}
		if err := m.client.GeoAdd(ctx, utils.RedisStaffLocationsKey, view.SessionID, view.Location.Lng, view.Location.Lat); err != nil {
			return fmt.Errorf("failed to mirror staff %s: %w", view.SessionID, err)
		}
	}
	return nil
}
