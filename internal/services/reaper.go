package services

import (
	"context"
	"time"

	"racebeacon/internal/models"
	"racebeacon/internal/repositories/interfaces"
	"racebeacon/pkg/logger"
)

// Announcer turns engine results into client notifications.
type Announcer interface {
	AnnounceDeparture(departure Departure)
	AnnounceEmergency(eventType string, change EmergencyChange)
	AnnounceStatus(status models.SystemStatus)
}

// StatusMirror receives the aggregate status after each sweep.
type StatusMirror interface {
	PublishStatus(ctx context.Context, status models.SystemStatus, sessions []models.SessionView) error
}

type ReaperConfig struct {
	Interval        time.Duration
	SessionTimeout  time.Duration
	EmergencyMaxAge time.Duration
	Retention       time.Duration
	BroadcastStatus bool
}

// Reaper periodically evicts silent sessions, expires old emergencies and
// purges terminal ones past retention.
type Reaper struct {
	engine      *Engine
	announcer   Announcer
	broadcaster Broadcaster
	mirror      StatusMirror
	archive     interfaces.EmergencyArchive
	config      ReaperConfig
	log         *logger.Logger
}

type ReaperOption func(*Reaper)

func WithStatusMirror(mirror StatusMirror) ReaperOption {
	return func(r *Reaper) {
		r.mirror = mirror
	}
}

func WithArchive(archive interfaces.EmergencyArchive) ReaperOption {
	return func(r *Reaper) {
		r.archive = archive
	}
}

func NewReaper(
	engine *Engine,
	announcer Announcer,
	broadcaster Broadcaster,
	config ReaperConfig,
	log *logger.Logger,
	opts ...ReaperOption,
) *Reaper {
	r := &Reaper{
		engine:      engine,
		announcer:   announcer,
		broadcaster: broadcaster,
		config:      config,
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.log.WithFields(map[string]interface{}{
		"interval":          r.config.Interval.String(),
		"session_timeout":   r.config.SessionTimeout.String(),
		"emergency_max_age": r.config.EmergencyMaxAge.String(),
	}).Info("Reaper started")

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Reaper stopped")
			return
		case now := <-ticker.C:
			r.Sweep(ctx, now)
		}
	}
}

// Sweep performs one pass at the given instant and announces everything it
// changed. Exposed so callers can drive the reaper with a fixed clock.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) SweepResult {
	start := time.Now()

	result := r.engine.Sweep(now, r.config.SessionTimeout, r.config.EmergencyMaxAge, r.config.Retention)

	for _, departure := range result.Departed {
		r.announcer.AnnounceDeparture(departure)
	}
	for _, change := range result.Expired {
		r.announcer.AnnounceEmergency(models.EventEmergencyResolved, change)
	}

	if len(result.Purged) > 0 && r.archive != nil {
		if err := r.archive.Archive(ctx, result.Purged); err != nil {
			r.log.WithError(err).WithField("count", len(result.Purged)).Error("Failed to archive purged emergencies")
		}
	}

	status := r.engine.Stats()
	if r.broadcaster != nil {
		status.Connections = r.broadcaster.ConnectionCount()
	}
	if r.config.BroadcastStatus {
		r.announcer.AnnounceStatus(status)
	}
	if r.mirror != nil {
		if err := r.mirror.PublishStatus(ctx, status, r.engine.Snapshot("")); err != nil {
			r.log.WithError(err).Warn("Failed to mirror status")
		}
	}

	r.log.LogSweep(len(result.Departed), len(result.Expired), len(result.Purged), time.Since(start))
	return result
}
