// Package audit keeps a searchable trail of channel delivery attempts so
// receivers left in the attempted state can be reconciled.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notification-workers/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Outcomes of a delivery attempt.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
)

// DeliveryRecord is one channel attempt for one notification.
type DeliveryRecord struct {
	NotificationID int64     `json:"notificationId"`
	ReceiverIDs    []int64   `json:"receiverIds"`
	UserIDs        []int64   `json:"userIds"`
	Channel        string    `json:"channel"`
	Outcome        string    `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}

// Recorder stores delivery records. Implementations never fail the caller.
type Recorder interface {
	Record(ctx context.Context, rec DeliveryRecord)
}

// IndexMapping is applied when the audit index is created.
const IndexMapping = `{
  "mappings": {
    "properties": {
      "notificationId": {"type": "long"},
      "receiverIds":    {"type": "long"},
      "userIds":        {"type": "long"},
      "channel":        {"type": "keyword"},
      "outcome":        {"type": "keyword"},
      "error":          {"type": "text"},
      "at":             {"type": "date"}
    }
  }
}`

// ESIndexer writes each record as a document.
type ESIndexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewESIndexer(client *elasticsearch.Client, index string, log logger.Logger) *ESIndexer {
	return &ESIndexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

func (r *ESIndexer) Record(ctx context.Context, rec DeliveryRecord) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	if err := r.indexRecord(ctx, rec); err != nil {
		r.logger.Warn("Failed to record delivery", map[string]interface{}{
			"notificationId": rec.NotificationID,
			"channel":        rec.Channel,
			"outcome":        rec.Outcome,
			"error":          err,
		})
	}
}

func (r *ESIndexer) indexRecord(ctx context.Context, rec DeliveryRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	req := esapi.IndexRequest{
		Index: r.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index error: %s", res.Status())
	}
	return nil
}

// NoopRecorder is used when auditing is disabled.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, DeliveryRecord) {}
