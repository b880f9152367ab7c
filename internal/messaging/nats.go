// Package messaging provides a NATS client wrapper for pub/sub messaging
// between forumd and the notifier. It handles connection lifecycle,
// subject-based subscriptions, and convenience methods for the forum's
// notification and moderation subjects.
package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATS subject patterns used across forum services.
const (
	SubjectNotifyUser       = "notify.user" // + .<user_id>
	SubjectNotifyModerators = "notify.moderators"
	SubjectFlagged          = "moderation.flagged"

	// QueueNotifier is the queue group shared by notifier instances so each
	// event is handled once.
	QueueNotifier = "notifier"
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn   *nats.Conn
	logger *zap.Logger
	mu     sync.Mutex
	subs   map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "forum",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig, logger *zap.Logger) (*NATSClient, error) {
	logger = logger.Named("nats")
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected", zap.Error(err))
			} else {
				logger.Info("disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info("connected", zap.String("url", nc.ConnectedUrl()))

	return &NATSClient{
		conn:   nc,
		logger: logger,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	c.track(subject, sub)
	return nil
}

// QueueSubscribe is Subscribe within a queue group: each message is
// delivered to one member of the group.
func (c *NATSClient) QueueSubscribe(subject, queue string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.QueueSubscribe(subject, queue, handler)
	if err != nil {
		return fmt.Errorf("nats queue subscribe %s: %w", subject, err)
	}
	c.track(subject, sub)
	return nil
}

func (c *NATSClient) track(subject string, sub *nats.Subscription) {
	c.mu.Lock()
	if old, ok := c.subs[subject]; ok {
		_ = old.Unsubscribe()
	}
	c.subs[subject] = sub
	c.mu.Unlock()
}

// PublishUserNotification publishes data to notify.user.<userID>.
func (c *NATSClient) PublishUserNotification(userID string, data []byte) error {
	return c.Publish(SubjectNotifyUser+"."+userID, data)
}

// SubscribeUserNotifications subscribes to notify.user.<userID>.
func (c *NATSClient) SubscribeUserNotifications(userID string, handler func(data []byte)) error {
	return c.Subscribe(SubjectNotifyUser+"."+userID, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeUserNotifications drops the notify.user.<userID> subscription.
func (c *NATSClient) UnsubscribeUserNotifications(userID string) error {
	return c.unsubscribe(SubjectNotifyUser + "." + userID)
}

// PublishModeratorNotification publishes a notification addressed to the
// moderator group.
func (c *NATSClient) PublishModeratorNotification(data []byte) error {
	return c.Publish(SubjectNotifyModerators, data)
}

// SubscribeModeratorNotifications consumes moderator-group notifications in
// the notifier queue group.
func (c *NATSClient) SubscribeModeratorNotifications(handler func(data []byte)) error {
	return c.QueueSubscribe(SubjectNotifyModerators, QueueNotifier, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishFlagged publishes an auto-flagged post event.
func (c *NATSClient) PublishFlagged(data []byte) error {
	return c.Publish(SubjectFlagged, data)
}

// SubscribeFlagged consumes auto-flagged post events in the notifier queue
// group.
func (c *NATSClient) SubscribeFlagged(handler func(data []byte)) error {
	return c.QueueSubscribe(SubjectFlagged, QueueNotifier, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Flush waits until the server has processed every buffered publish.
func (c *NATSClient) Flush() error {
	return c.conn.Flush()
}

// Connected reports whether the connection is currently up.
func (c *NATSClient) Connected() bool {
	return c.conn.IsConnected()
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.logger.Warn("drain subscription", zap.String("subject", subject), zap.Error(err))
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("connection drain", zap.Error(err))
	}

	c.logger.Info("client closed")
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
