package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types carried in RefreshMessage.JobType.
const (
	JobReferenceRefresh = "reference_refresh"
	JobRouteWarm        = "route_warm"
	JobCacheClear       = "cache_clear"
	JobHealthCheck      = "health_check"
)

// AllJobs are the jobs a serving process runs against its own caches.
var AllJobs = []string{JobReferenceRefresh, JobRouteWarm, JobCacheClear, JobHealthCheck}

// SharedJobs are the jobs whose effect is visible outside the process that
// runs them: warming and clearing the shared route cache, and probing the
// provider. A standalone worker is limited to these.
var SharedJobs = []string{JobRouteWarm, JobCacheClear, JobHealthCheck}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// RefreshMessage represents a job message.
type RefreshMessage struct {
	JobType string `json:"job_type"`
	// MaxPriority limits route_warm to the most important hubs; zero keeps all.
	MaxPriority int `json:"max_priority,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	switch err := h.dispatcher.Handle(ctx, msg.Data); {
	case err == nil:
		msg.Ack()
	case IsPermanent(err):
		// Redelivery cannot fix a malformed or unknown message.
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}

// Dispatcher decodes job messages and runs the matching job. It is shared
// by the Pub/Sub handler and the periodic scheduler.
type Dispatcher struct {
	job    *RefreshJob
	logger zerolog.Logger
	jobs   map[string]bool
}

// NewDispatcher creates a dispatcher for job that accepts the given job
// types. Without any, every job type is accepted.
func NewDispatcher(job *RefreshJob, logger zerolog.Logger, jobs ...string) *Dispatcher {
	if len(jobs) == 0 {
		jobs = AllJobs
	}
	accepted := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		accepted[j] = true
	}
	return &Dispatcher{job: job, logger: logger, jobs: accepted}
}

// Accepts reports whether the dispatcher runs jobType.
func (d *Dispatcher) Accepts(jobType string) bool {
	return d.jobs[jobType]
}

// permanentError marks a message that must not be redelivered.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsPermanent reports whether err came from a message that can never succeed.
func IsPermanent(err error) bool {
	var perr *permanentError
	return errors.As(err, &perr)
}

// Handle decodes data and runs the job it names.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var m RefreshMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return &permanentError{err: fmt.Errorf("parsing message: %w", err)}
	}
	return d.Run(ctx, m)
}

// Run executes one job.
func (d *Dispatcher) Run(ctx context.Context, m RefreshMessage) error {
	if !d.Accepts(m.JobType) {
		if slices.Contains(AllJobs, m.JobType) {
			return &permanentError{err: fmt.Errorf("job type %q does not run in this process", m.JobType)}
		}
		return &permanentError{err: fmt.Errorf("unknown job type %q", m.JobType)}
	}
	start := time.Now()

	var err error
	switch m.JobType {
	case JobReferenceRefresh:
		err = check(d.job.RefreshReference(ctx))
	case JobRouteWarm:
		job := d.job
		if m.MaxPriority > 0 {
			job = job.withMaxPriority(m.MaxPriority)
		}
		err = check(job.WarmRoutes(ctx))
	case JobCacheClear:
		err = d.job.ClearCaches(ctx)
	case JobHealthCheck:
		err = d.job.HealthCheck(ctx)
	default:
		return &permanentError{err: fmt.Errorf("unknown job type %q", m.JobType)}
	}
	if err != nil {
		return err
	}

	d.logger.Info().
		Str("job_type", m.JobType).
		Dur("duration", time.Since(start)).
		Msg("job completed successfully")
	return nil
}

// check treats a run as failed when more items failed than succeeded.
func check(result *RefreshResult) error {
	if !result.Healthy() {
		return fmt.Errorf("%s: too many failures: %d/%d", result.Job, result.Failed, result.Total)
	}
	return nil
}

// withMaxPriority returns a copy of the job limited to high priority hubs.
// Metrics stay shared with the original.
func (j *RefreshJob) withMaxPriority(p int) *RefreshJob {
	cp := *j
	cp.config.MaxPriority = p
	return &cp
}

// RunPeriodic runs the accepted warm jobs (reference_refresh, route_warm)
// once immediately and then on every tick until ctx ends.
func (d *Dispatcher) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	warm := func() {
		for _, job := range []string{JobReferenceRefresh, JobRouteWarm} {
			if !d.Accepts(job) {
				continue
			}
			if err := d.Run(ctx, RefreshMessage{JobType: job}); err != nil && ctx.Err() == nil {
				d.logger.Warn().Err(err).Str("job_type", job).Msg("periodic job failed")
			}
		}
	}

	warm()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			warm()
		}
	}
}
