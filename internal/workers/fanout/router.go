// Package fanout splits a notification's receivers by channel preference and
// delivers it over email and in-app push.
package fanout

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"notification-workers/internal/channels/email"
	"notification-workers/internal/common/audit"
	"notification-workers/internal/common/consumer"
	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/models"
	"notification-workers/internal/store"
	"notification-workers/pkg/registry"
)

const (
	channelEmail = "email"
	channelInApp = "inapp"
)

// Router delivers notifications. Email is sent from the calling process;
// in-app pushes are published to the fan-out stream so every instance can
// reach its own connected clients.
type Router struct {
	store     store.Querier
	publisher consumer.Publisher
	sender    email.Sender
	recorder  audit.Recorder
	appURL    string
	logger    logger.Logger
	now       func() time.Time
}

type Option func(*Router)

// WithRecorder sets where delivery attempts are audited.
func WithRecorder(r audit.Recorder) Option {
	return func(rt *Router) { rt.recorder = r }
}

// WithAppURL sets the link base used in email bodies.
func WithAppURL(url string) Option {
	return func(rt *Router) { rt.appURL = url }
}

func NewRouter(q store.Querier, pub consumer.Publisher, sender email.Sender, log logger.Logger, opts ...Option) *Router {
	r := &Router{
		store:     q,
		publisher: pub,
		sender:    sender,
		recorder:  audit.NoopRecorder{},
		logger:    log.WithFields(map[string]interface{}{"component": "fanout-router"}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver pushes n to its receivers on every channel they did not opt out
// of. Channel failures are logged and leave the receivers' flag Attempted;
// only failing to load users or preferences is returned.
func (r *Router) Deliver(ctx context.Context, n *models.Notification, receivers []models.NotificationReceiver) error {
	if n == nil || len(receivers) == 0 {
		return nil
	}

	userIDs := distinctUsers(receivers)
	users, err := r.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return errors.NewPersistenceError("get users", err)
	}
	prefs, err := r.store.GetPreferences(ctx, userIDs, n.Type)
	if err != nil {
		return errors.NewPersistenceError("get preferences", err)
	}

	plan := partition(n, receivers, users, prefs)

	// Channels are independent: a failure on one never skips the other.
	r.deliverInApp(ctx, n, plan.inApp)
	r.deliverEmail(ctx, n, plan.email, plan.emailTo)
	return nil
}

type deliveryPlan struct {
	inApp   []models.NotificationReceiver
	email   []models.NotificationReceiver
	emailTo []string
}

// partition applies default-allow preferences. Email additionally needs an
// address and a subject for the type.
func partition(n *models.Notification, receivers []models.NotificationReceiver, users []models.User, prefs []models.NotificationPreferences) deliveryPlan {
	byUser := make(map[int64]models.NotificationPreferences, len(prefs))
	for _, p := range prefs {
		byUser[p.UserID] = p
	}
	addresses := make(map[int64]string, len(users))
	for _, u := range users {
		addresses[u.ID] = u.Email
	}
	_, hasSubject := email.SubjectFor(n.Type)

	var plan deliveryPlan
	seen := make(map[string]bool)
	for _, rc := range receivers {
		pref, ok := byUser[rc.UserID]
		if !ok || pref.InApp {
			plan.inApp = append(plan.inApp, rc)
		}
		addr := addresses[rc.UserID]
		if (!ok || pref.Email) && hasSubject && addr != "" {
			plan.email = append(plan.email, rc)
			if !seen[addr] {
				seen[addr] = true
				plan.emailTo = append(plan.emailTo, addr)
			}
		}
	}
	return plan
}

func (r *Router) deliverInApp(ctx context.Context, n *models.Notification, receivers []models.NotificationReceiver) {
	if len(receivers) == 0 {
		return
	}
	ids := receiverIDs(receivers)
	if err := r.store.UpdateInAppState(ctx, ids, models.DeliveryAttempted); err != nil {
		r.logger.Error("Failed to mark in-app delivery attempted", map[string]interface{}{
			"notificationId": n.ID,
			"error":          err,
		})
		metrics.ChannelDeliveries.WithLabelValues(channelInApp, "failed").Inc()
		return
	}

	var confirmed, failedUsers []int64
	var confirmedUsers []int64
	var lastErr error
	for _, group := range groupByUser(n, receivers) {
		if err := r.publisher.Publish(ctx, registry.SubjectFanOutNew, group); err != nil {
			failedUsers = append(failedUsers, group.UserID)
			lastErr = err
			continue
		}
		confirmedUsers = append(confirmedUsers, group.UserID)
		confirmed = append(confirmed, receiverIDs(group.NotificationReceivers)...)
	}

	if len(confirmed) > 0 {
		if err := r.store.UpdateInAppState(ctx, confirmed, models.DeliveryConfirmed); err != nil {
			r.logger.Error("Failed to confirm in-app delivery", map[string]interface{}{
				"notificationId": n.ID,
				"error":          err,
			})
		}
		metrics.ChannelDeliveries.WithLabelValues(channelInApp, "confirmed").Add(float64(len(confirmed)))
		r.record(ctx, n, confirmed, confirmedUsers, channelInApp, nil)
	}
	if len(failedUsers) > 0 {
		r.logger.Warn("In-app delivery failed", map[string]interface{}{
			"notificationId": n.ID,
			"userIds":        failedUsers,
			"error":          lastErr,
		})
		metrics.ChannelDeliveries.WithLabelValues(channelInApp, "failed").Add(float64(len(failedUsers)))
		r.record(ctx, n, nil, failedUsers, channelInApp, lastErr)
	}
}

func (r *Router) deliverEmail(ctx context.Context, n *models.Notification, receivers []models.NotificationReceiver, to []string) {
	if len(receivers) == 0 {
		return
	}
	ids := receiverIDs(receivers)
	users := distinctUsers(receivers)
	if err := r.store.UpdateEmailState(ctx, ids, models.DeliveryAttempted); err != nil {
		r.logger.Error("Failed to mark email delivery attempted", map[string]interface{}{
			"notificationId": n.ID,
			"error":          err,
		})
		metrics.ChannelDeliveries.WithLabelValues(channelEmail, "failed").Inc()
		return
	}

	subject, _ := email.SubjectFor(n.Type)
	msg := email.Email{To: to, Subject: subject, Text: email.NotificationText(n, r.transactionFor(ctx, n), r.appURL, r.now())}
	if err := r.sender.Send(ctx, msg); err != nil {
		r.logger.Warn("Email delivery failed", map[string]interface{}{
			"notificationId": n.ID,
			"recipients":     len(to),
			"error":          err,
		})
		metrics.ChannelDeliveries.WithLabelValues(channelEmail, "failed").Inc()
		r.record(ctx, n, ids, users, channelEmail, err)
		return
	}

	if err := r.store.UpdateEmailState(ctx, ids, models.DeliveryConfirmed); err != nil {
		r.logger.Error("Failed to confirm email delivery", map[string]interface{}{
			"notificationId": n.ID,
			"error":          err,
		})
	}
	metrics.ChannelDeliveries.WithLabelValues(channelEmail, "confirmed").Add(float64(len(ids)))
	r.record(ctx, n, ids, users, channelEmail, nil)
}

// transactionFor loads the transaction a notification refers to, if any.
// The email still goes out without it.
func (r *Router) transactionFor(ctx context.Context, n *models.Notification) *models.Transaction {
	if n.EntityID == nil || n.Type == models.TypeGeneral || n.Type == models.TypeCustom {
		return nil
	}
	tx, err := r.store.GetTransaction(ctx, *n.EntityID)
	if err != nil {
		r.logger.Debug("Transaction unavailable for email body", map[string]interface{}{
			"transactionId": *n.EntityID,
			"error":         err,
		})
		return nil
	}
	return tx
}

func (r *Router) record(ctx context.Context, n *models.Notification, ids, users []int64, channel string, err error) {
	rec := audit.DeliveryRecord{
		NotificationID: n.ID,
		ReceiverIDs:    ids,
		UserIDs:        users,
		Channel:        channel,
		Outcome:        audit.OutcomeConfirmed,
		At:             r.now().UTC(),
	}
	if err != nil {
		rec.Outcome = audit.OutcomeFailed
		rec.Error = err.Error()
	}
	r.recorder.Record(ctx, rec)
}

// Remove tells every instance to drop the given receivers per user.
func (r *Router) Remove(ctx context.Context, removed map[int64][]int64) error {
	var errs []error
	for userID, ids := range removed {
		if len(ids) == 0 {
			continue
		}
		msg := DeleteNotifications{UserID: userID, NotificationReceiverIDs: ids}
		if err := r.publisher.Publish(ctx, registry.SubjectFanOutDelete, msg); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
		}
	}
	return stderrors.Join(errs...)
}

// NotifyClients asks clients to refresh the listed transactions.
func (r *Router) NotifyClients(ctx context.Context, ev NotifyClients) error {
	if len(ev.UserIDs) == 0 {
		return nil
	}
	if ev.TransactionIDs == nil {
		ev.TransactionIDs = []int64{}
	}
	if ev.GroupIDs == nil {
		ev.GroupIDs = []int64{}
	}
	return r.publisher.Publish(ctx, registry.SubjectFanOutNotifyClients, ev)
}

func groupByUser(n *models.Notification, receivers []models.NotificationReceiver) []NewNotifications {
	index := make(map[int64]int)
	var out []NewNotifications
	for _, rc := range receivers {
		rc.Notification = n
		i, ok := index[rc.UserID]
		if !ok {
			i = len(out)
			index[rc.UserID] = i
			out = append(out, NewNotifications{UserID: rc.UserID})
		}
		out[i].NotificationReceivers = append(out[i].NotificationReceivers, rc)
	}
	return out
}

func distinctUsers(receivers []models.NotificationReceiver) []int64 {
	seen := make(map[int64]bool, len(receivers))
	out := make([]int64, 0, len(receivers))
	for _, rc := range receivers {
		if !seen[rc.UserID] {
			seen[rc.UserID] = true
			out = append(out, rc.UserID)
		}
	}
	return out
}

func receiverIDs(receivers []models.NotificationReceiver) []int64 {
	out := make([]int64, len(receivers))
	for i, rc := range receivers {
		out[i] = rc.ID
	}
	return out
}
