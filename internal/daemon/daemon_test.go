package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gregkorneev/alt-station/internal/domain"
)

// fakeTransport records sent messages and can fail a fixed number of
// times before succeeding.
type fakeTransport struct {
	mu       sync.Mutex
	sent     []string
	sentTo   []int64
	failures int
}

func (f *fakeTransport) Send(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("transport unavailable")
	}
	f.sent = append(f.sent, text)
	f.sentTo = append(f.sentTo, chatID)
	return nil
}

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeReader struct {
	readings []domain.Reading
	calls    int
}

func (f *fakeReader) Read(ctx context.Context) domain.Reading {
	r := f.readings[f.calls%len(f.readings)]
	f.calls++
	return r
}

type memAlertStateStore struct {
	state domain.AlertState
	err   error
}

func (m *memAlertStateStore) LoadAlertState() (domain.AlertState, error) { return m.state, m.err }
func (m *memAlertStateStore) SaveAlertState(s domain.AlertState) error {
	m.state = s
	return m.err
}

type memSubscriberStore struct{ ids []int64 }

func (m *memSubscriberStore) Add(chatID int64) error    { return nil }
func (m *memSubscriberStore) Remove(chatID int64) error { return nil }
func (m *memSubscriberStore) All() ([]int64, error)     { return m.ids, nil }

func reading(percent int, onAC bool) domain.Reading {
	return domain.Reading{
		BatteryPercent: &percent,
		OnAC:           &onAC,
		ChargeState:    "discharging",
	}
}

func TestDefaultMonitorConfig(t *testing.T) {
	config := DefaultMonitorConfig()

	assert.Equal(t, 60*time.Second, config.PollInterval)
	assert.Equal(t, 20, config.Thresholds.Low)
	assert.Equal(t, 25, config.Thresholds.Recovery)
}

func TestDefaultNotifierConfig(t *testing.T) {
	config := DefaultNotifierConfig()

	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, config.BaseBackoff)
}

func TestNotifier_RetriesThenSucceeds(t *testing.T) {
	transport := &fakeTransport{failures: 2}
	n := NewNotifier(NotifierConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}, transport, zap.NewNop())

	err := n.Notify(context.Background(), 42, "hello")

	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, transport.messages())
}

func TestNotifier_GivesUpAfterMaxAttempts(t *testing.T) {
	transport := &fakeTransport{failures: 10}
	n := NewNotifier(NotifierConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}, transport, zap.NewNop())

	err := n.Notify(context.Background(), 42, "hello")

	assert.Error(t, err)
	assert.Empty(t, transport.messages())
	// Exactly three attempts were consumed.
	assert.Equal(t, 7, transport.failures)
}

func TestNotifier_CanceledContextStopsRetry(t *testing.T) {
	transport := &fakeTransport{failures: 10}
	n := NewNotifier(NotifierConfig{MaxAttempts: 5, BaseBackoff: time.Hour}, transport, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Notify(ctx, 42, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestMonitor(reader *fakeReader, states *memAlertStateStore, subs *memSubscriberStore, transport *fakeTransport) *Monitor {
	logger := zap.NewNop()
	notifier := NewNotifier(NotifierConfig{MaxAttempts: 1, BaseBackoff: time.Millisecond}, transport, logger)
	cfg := DefaultMonitorConfig()
	cfg.PollInterval = 5 * time.Millisecond
	return NewMonitor(cfg, reader, states, subs, notifier, logger)
}

func TestMonitor_PollFiresLowAlert(t *testing.T) {
	reader := &fakeReader{readings: []domain.Reading{reading(15, false)}}
	states := &memAlertStateStore{}
	subs := &memSubscriberStore{ids: []int64{1, 2}}
	transport := &fakeTransport{}

	m := newTestMonitor(reader, states, subs, transport)
	m.poll(context.Background())

	msgs := transport.messages()
	require.Len(t, msgs, 2, "one alert per subscriber")
	assert.Contains(t, msgs[0], "Низкий заряд")
	assert.Equal(t, []int64{1, 2}, transport.sentTo)
	assert.True(t, states.state.LowAlertActive)
}

func TestMonitor_NoAlertWithoutTransition(t *testing.T) {
	reader := &fakeReader{readings: []domain.Reading{reading(50, false)}}
	states := &memAlertStateStore{}
	subs := &memSubscriberStore{ids: []int64{1}}
	transport := &fakeTransport{}

	m := newTestMonitor(reader, states, subs, transport)
	m.poll(context.Background())
	m.poll(context.Background())

	assert.Empty(t, transport.messages())
	require.NotNil(t, states.state.LastPercent)
	assert.Equal(t, 50, *states.state.LastPercent)
}

func TestMonitor_RecoveryAfterLow(t *testing.T) {
	reader := &fakeReader{readings: []domain.Reading{
		reading(30, false),
		reading(15, false),
		reading(26, true),
	}}
	states := &memAlertStateStore{}
	subs := &memSubscriberStore{ids: []int64{1}}
	transport := &fakeTransport{}

	m := newTestMonitor(reader, states, subs, transport)
	for i := 0; i < 3; i++ {
		m.poll(context.Background())
	}

	msgs := transport.messages()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0], "Низкий заряд")
	// Recovery and the plug-in edge both fire on the third poll.
	assert.Contains(t, msgs[1]+msgs[2], "Заряд восстановился")
	assert.Contains(t, msgs[1]+msgs[2], "ПОДКЛЮЧЕНО")
	assert.False(t, states.state.LowAlertActive)
}

func TestMonitor_StateLoadFailureSkipsCycle(t *testing.T) {
	reader := &fakeReader{readings: []domain.Reading{reading(5, false)}}
	states := &memAlertStateStore{err: errors.New("disk gone")}
	subs := &memSubscriberStore{ids: []int64{1}}
	transport := &fakeTransport{}

	m := newTestMonitor(reader, states, subs, transport)
	m.poll(context.Background())

	assert.Empty(t, transport.messages(), "must not alert off unknown previous state")
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	reader := &fakeReader{readings: []domain.Reading{reading(50, true)}}
	states := &memAlertStateStore{}
	subs := &memSubscriberStore{}
	transport := &fakeTransport{}

	m := newTestMonitor(reader, states, subs, transport)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancel")
	}

	assert.GreaterOrEqual(t, reader.calls, 1, "startup poll must run before the first tick")
}
