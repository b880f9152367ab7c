package messaging

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

// newTestClient connects to a local NATS server. Tests that call this
// helper require nats-server on localhost:4222.
func newTestClient(t *testing.T) *NATSClient {
	t.Helper()
	cfg := DefaultNATSConfig()
	cfg.Name = "forum-test"
	cfg.MaxReconnects = 0
	c, err := NewNATSClient(cfg, zap.NewNop())
	if err != nil {
		t.Skipf("nats not available: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestUserNotificationRoundTrip(t *testing.T) {
	c := newTestClient(t)

	got := make(chan []byte, 1)
	if err := c.SubscribeUserNotifications("test-user", func(data []byte) { got <- data }); err != nil {
		t.Fatalf("SubscribeUserNotifications() error: %v", err)
	}
	if err := c.PublishUserNotification("test-user", []byte(`{"type":"warning"}`)); err != nil {
		t.Fatalf("PublishUserNotification() error: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	select {
	case data := <-got:
		if string(data) != `{"type":"warning"}` {
			t.Errorf("received %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}

	if err := c.UnsubscribeUserNotifications("test-user"); err != nil {
		t.Errorf("UnsubscribeUserNotifications() error: %v", err)
	}
	if err := c.UnsubscribeUserNotifications("test-user"); err == nil {
		t.Error("second UnsubscribeUserNotifications() error = nil, want error")
	}
}

func TestFlaggedQueueDeliversOnce(t *testing.T) {
	a := newTestClient(t)
	b := newTestClient(t)

	got := make(chan string, 4)
	if err := a.SubscribeFlagged(func([]byte) { got <- "a" }); err != nil {
		t.Fatalf("SubscribeFlagged(a) error: %v", err)
	}
	if err := b.SubscribeFlagged(func([]byte) { got <- "b" }); err != nil {
		t.Fatalf("SubscribeFlagged(b) error: %v", err)
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	if err := a.PublishFlagged([]byte(`{}`)); err != nil {
		t.Fatalf("PublishFlagged() error: %v", err)
	}
	a.Flush()

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flagged event")
	}
	select {
	case who := <-got:
		t.Errorf("event delivered twice, second to %s", who)
	case <-time.After(200 * time.Millisecond):
	}
}
