package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"notification-workers/internal/channels/email"
	"notification-workers/internal/channels/inapp"
	"notification-workers/internal/common/audit"
	awsclients "notification-workers/internal/common/aws"
	"notification-workers/internal/common/camunda"
	"notification-workers/internal/common/config"
	"notification-workers/internal/common/consumer"
	"notification-workers/internal/common/database"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/observability"
	emailworker "notification-workers/internal/workers/email"
	"notification-workers/internal/workers/fanout"
	"notification-workers/internal/workers/receiver"
	"notification-workers/pkg/registry"
)

// awsLoader resolves AWS credentials on first use, so smtp + redis
// deployments never touch the provider chain.
type awsLoader struct {
	region  string
	clients *awsclients.Clients
}

func newAWSLoader(region string) *awsLoader {
	return &awsLoader{region: region}
}

func (a *awsLoader) get(ctx context.Context) (*awsclients.Clients, error) {
	if a.clients != nil {
		return a.clients, nil
	}
	c, err := awsclients.NewClients(ctx, a.region)
	if err != nil {
		return nil, err
	}
	a.clients = c
	return c, nil
}

func buildSender(ctx context.Context, cfg *config.Config, aws *awsLoader) (email.Sender, error) {
	switch cfg.Email.Provider {
	case "ses":
		c, err := aws.get(ctx)
		if err != nil {
			return nil, err
		}
		return email.NewSESSender(c.SES, cfg.Email.From), nil
	case "", "smtp":
		s, err := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			UseTLS:   cfg.Email.SMTP.UseTLS,
			Timeout:  config.GetDuration(cfg.Email.SMTP.Timeout),
			From:     cfg.Email.From,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

func buildEmitter(ctx context.Context, cfg *config.Config, rdb redis.Cmdable, aws *awsLoader, log logger.Logger) (inapp.Emitter, error) {
	switch cfg.InApp.Transport {
	case "hub":
		return inapp.NewHub(log), nil
	case "", "redis":
		return inapp.NewRedisEmitter(rdb, cfg.InApp.ChannelPrefix), nil
	case "sns":
		c, err := aws.get(ctx)
		if err != nil {
			return nil, err
		}
		return inapp.NewSNSEmitter(c.SNS, cfg.InApp.TopicARN), nil
	default:
		return nil, fmt.Errorf("unknown in-app transport %q", cfg.InApp.Transport)
	}
}

func buildRecorder(ctx context.Context, cfg *config.Config, log logger.Logger) (audit.Recorder, error) {
	if !cfg.Audit.Enabled {
		return audit.NoopRecorder{}, nil
	}

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return nil, err
	}
	err = retryWithBackoff(ctx, func() error {
		return es.Ping(ctx)
	}, 15, 2*time.Second, log, "Elasticsearch connection")
	if err != nil {
		return nil, err
	}
	if err := es.EnsureIndex(ctx, cfg.Audit.Index, audit.IndexMapping); err != nil {
		return nil, err
	}
	return audit.NewESIndexer(es.Client, cfg.Audit.Index, log), nil
}

// stream pairs one configured durable consumer with its routes.
type stream struct {
	cfg    config.ConsumerConfig
	routes []consumer.Route
	// every process needs its own group so each hub sees every event
	broadcast bool
	// the zeebe transport cannot broadcast, fan-out always stays on redis
	redisOnly bool
}

// buildConsumers creates one Consumer per enabled stream. The returned
// cleanup closes sources and drops per-process groups.
func buildConsumers(
	ctx context.Context,
	cfg *config.Config,
	reg *registry.SubjectRegistry,
	rdb *redis.Client,
	sender email.Sender,
	emitter inapp.Emitter,
	svc *receiver.Service,
	obs *observability.Observability,
	log logger.Logger,
) ([]*consumer.Consumer, func(context.Context), error) {
	streams := []stream{
		{cfg: cfg.Streams.Email, routes: emailworker.NewHandler(sender, cfg.Templates.AppURL, log).Routes()},
		{cfg: cfg.Streams.Receiver, routes: svc.Routes()},
		{
			cfg:       cfg.Streams.FanOut,
			routes:    fanout.NewHandlers(emitter, log).Routes(),
			broadcast: cfg.InApp.Transport == "hub",
			redisOnly: true,
		},
	}

	var zb *camunda.Client
	if cfg.Streams.Transport == "zeebe" {
		err := retryWithBackoff(ctx, func() error {
			var err error
			zb, err = camunda.Connect(ctx, &camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
			})
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			return nil, nil, err
		}
	}

	var (
		consumers []*consumer.Consumer
		cleanups  []func(context.Context)
	)
	cleanup := func(ctx context.Context) {
		for _, fn := range cleanups {
			fn(ctx)
		}
		if zb != nil {
			if err := zb.Close(); err != nil {
				log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	for _, s := range streams {
		if !s.cfg.Enabled {
			log.Info("Consumer disabled", map[string]interface{}{"stream": s.cfg.Stream})
			continue
		}

		routes, err := consumer.AttachSchemas(reg, s.routes)
		if err != nil {
			cleanup(ctx)
			return nil, nil, err
		}
		subjects := reg.Subjects(s.cfg.Stream)
		if len(subjects) == 0 {
			cleanup(ctx)
			return nil, nil, fmt.Errorf("stream %s has no registered subjects", s.cfg.Stream)
		}

		var src consumer.Source
		if zb != nil && !s.redisOnly {
			src = consumer.NewZeebeSource(zb, consumer.ZeebeSourceConfig{
				Worker:         s.cfg.Durable,
				Subjects:       subjects,
				MaxJobs:        cfg.Camunda.MaxJobsActive,
				Timeout:        config.GetDuration(cfg.Camunda.Timeout),
				RequestTimeout: config.GetDuration(cfg.Camunda.RequestTimeout),
			}, log)
		} else {
			group := s.cfg.Durable
			if s.broadcast {
				group = consumer.UniqueDurable(group)
			}
			rs, err := consumer.NewRedisSource(ctx, rdb, consumer.RedisSourceConfig{
				Stream:          s.cfg.Stream,
				Group:           group,
				Consumer:        consumerName(),
				Subjects:        subjects,
				BatchSize:       int64(cfg.Streams.BatchSize),
				Block:           config.GetDuration(cfg.Streams.BlockTimeout),
				AckWait:         config.GetDuration(cfg.Streams.AckWait),
				ReclaimInterval: config.GetDuration(cfg.Streams.ReclaimInterval),
			}, log)
			if err != nil {
				cleanup(ctx)
				return nil, nil, err
			}
			if s.broadcast {
				cleanups = append(cleanups, func(ctx context.Context) {
					if err := rs.DestroyGroup(ctx); err != nil {
						log.Warn("Could not drop fan-out group", map[string]interface{}{"group": group, "error": err.Error()})
					}
				})
			}
			src = rs
		}
		cleanups = append(cleanups, func(context.Context) { _ = src.Close() })

		consumers = append(consumers, consumer.New(s.cfg.Stream, src, routes, cfg.Streams.MaxDeliver, obs, log))
		log.Info("Consumer registered", map[string]interface{}{
			"stream":   s.cfg.Stream,
			"durable":  s.cfg.Durable,
			"subjects": subjects,
		})
	}
	return consumers, cleanup, nil
}

// consumerName identifies this process inside a consumer group.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
