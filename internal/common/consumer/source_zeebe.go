package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notification-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
)

// JobClient is the part of the Zeebe gateway API a ZeebeSource uses.
// camunda.Client implements it.
type JobClient interface {
	Activate(ctx context.Context, jobType, worker string, max int32, timeout, requestTimeout time.Duration) ([]entities.Job, error)
	Complete(ctx context.Context, key int64) error
	Fail(ctx context.Context, key int64, retries int32, message string) error
}

// ZeebeSource treats each subject as a job type. Competing workers share a
// worker name, and Zeebe's job retries carry redelivery.
type ZeebeSource struct {
	client         JobClient
	worker         string
	subjects       []string
	maxJobs        int32
	timeout        time.Duration
	requestTimeout time.Duration
	logger         logger.Logger
	next           int
}

type ZeebeSourceConfig struct {
	Worker         string
	Subjects       []string
	MaxJobs        int
	Timeout        time.Duration // job lock, the ack wait
	RequestTimeout time.Duration // long-poll
}

func NewZeebeSource(client JobClient, cfg ZeebeSourceConfig, log logger.Logger) *ZeebeSource {
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 10
	}
	return &ZeebeSource{
		client:         client,
		worker:         cfg.Worker,
		subjects:       cfg.Subjects,
		maxJobs:        int32(cfg.MaxJobs),
		timeout:        cfg.Timeout,
		requestTimeout: cfg.RequestTimeout,
		logger:         log.WithFields(map[string]interface{}{"component": "zeebe-source", "worker": cfg.Worker}),
	}
}

// Fetch activates jobs for the next subject in round-robin order.
func (z *ZeebeSource) Fetch(ctx context.Context) ([]*Message, error) {
	if len(z.subjects) == 0 {
		return nil, nil
	}
	subject := z.subjects[z.next%len(z.subjects)]
	z.next++

	jobs, err := z.client.Activate(ctx, subject, z.worker, z.maxJobs, z.timeout, z.requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("activate %s jobs: %w", subject, err)
	}

	msgs := make([]*Message, 0, len(jobs))
	for _, job := range jobs {
		msgs = append(msgs, &Message{
			ID:         fmt.Sprintf("%d", job.GetKey()),
			Subject:    job.GetType(),
			Data:       jobPayload(job.GetVariables()),
			Deliveries: 1,
			jobKey:     job.GetKey(),
			jobRetries: job.GetRetries(),
		})
	}
	return msgs, nil
}

// jobPayload returns the "payload" variable when present, otherwise all variables.
func jobPayload(variables string) []byte {
	var vars map[string]json.RawMessage
	if err := json.Unmarshal([]byte(variables), &vars); err == nil {
		if p, ok := vars["payload"]; ok {
			return p
		}
	}
	return []byte(variables)
}

func (z *ZeebeSource) Ack(ctx context.Context, msg *Message) error {
	return z.client.Complete(ctx, msg.jobKey)
}

// Nack fails the job with one retry fewer. At zero Zeebe raises an incident.
func (z *ZeebeSource) Nack(ctx context.Context, msg *Message) error {
	retries := msg.jobRetries - 1
	if retries < 0 {
		retries = 0
	}
	return z.client.Fail(ctx, msg.jobKey, retries, "notification handler failed")
}

func (z *ZeebeSource) Close() error {
	return nil
}
