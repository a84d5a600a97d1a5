package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockSender records calls through testify's mock.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendPush(ctx context.Context, sub PushSubscription, payload Payload) error {
	return m.Called(ctx, sub, payload).Error(0)
}

func (m *MockSender) SendEmail(ctx context.Context, address string, payload Payload) error {
	return m.Called(ctx, address, payload).Error(0)
}

func (m *MockSender) SendInAppLive(ctx context.Context, sessionID string, payload Payload) error {
	return m.Called(ctx, sessionID, payload).Error(0)
}

// sentMessage is one call seen by recordingSender.
type sentMessage struct {
	Channel Channel
	Address string
	Payload Payload
}

// recordingSender accepts every delivery unless fail returns an error.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail func(ch Channel, address string) error
}

func (s *recordingSender) record(ch Channel, address string, p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{Channel: ch, Address: address, Payload: p})
	if s.fail != nil {
		return s.fail(ch, address)
	}
	return nil
}

func (s *recordingSender) SendPush(_ context.Context, sub PushSubscription, p Payload) error {
	return s.record(ChannelPush, sub.ID, p)
}

func (s *recordingSender) SendEmail(_ context.Context, address string, p Payload) error {
	return s.record(ChannelEmail, address, p)
}

func (s *recordingSender) SendInAppLive(_ context.Context, sessionID string, p Payload) error {
	return s.record(ChannelInApp, sessionID, p)
}

func (s *recordingSender) byChannel(ch Channel) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.sent {
		if m.Channel == ch {
			out = append(out, m)
		}
	}
	return out
}

type staticSessions map[string][]string

func (s staticSessions) Sessions(userID string) []string { return s[userID] }

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func noSleep(context.Context, time.Duration) error { return nil }

func fixedJitter() float64 { return 0.5 }

func unlimitedDispatcherConfig() DispatcherConfig {
	cfg := DefaultDispatcherConfig()
	cfg.PushRatePerSec = 0
	cfg.EmailRatePerSec = 0
	return cfg
}
