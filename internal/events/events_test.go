package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebalancr/rebalancr/pkg/logger"
)

func newTestManager() *Manager {
	return NewManager(logger.New(logger.Config{Level: "error"}))
}

func TestSubscribeAndEmit(t *testing.T) {
	m := newTestManager()

	var received []Event
	m.Subscribe(func(e Event) {
		received = append(received, e)
	})

	m.Emit(RebalanceSkipped, "rebalancing", &RebalanceSkippedData{PortfolioID: 1, Reason: "too frequent"})

	require.Len(t, received, 1)
	assert.Equal(t, RebalanceSkipped, received[0].Type)
	assert.Equal(t, "rebalancing", received[0].Module)
	assert.False(t, received[0].Timestamp.IsZero())

	data, ok := received[0].Data.(*RebalanceSkippedData)
	require.True(t, ok)
	assert.Equal(t, int64(1), data.PortfolioID)
	assert.Equal(t, "too frequent", data.Reason)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := newTestManager()

	count := 0
	unsubscribe := m.Subscribe(func(Event) { count++ })

	m.Emit(JobStarted, "scheduler", &JobStatusData{JobName: "monitor", Status: "started"})
	unsubscribe()
	m.Emit(JobCompleted, "scheduler", &JobStatusData{JobName: "monitor", Status: "completed"})

	assert.Equal(t, 1, count)
}

func TestEmitFansOutToAllSubscribers(t *testing.T) {
	m := newTestManager()

	first, second := 0, 0
	m.Subscribe(func(Event) { first++ })
	m.Subscribe(func(Event) { second++ })

	m.Emit(SignalDegraded, "signals", &SignalDegradedData{Symbol: "BTC", Source: "sentiment"})

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	m := newTestManager()

	m.Subscribe(func(Event) { panic("bad subscriber") })
	delivered := 0
	m.Subscribe(func(Event) { delivered++ })

	assert.NotPanics(t, func() {
		m.Emit(TradeExecuted, "execution", &TradeExecutedData{Symbol: "ETH", Success: true})
	})
	assert.Equal(t, 1, delivered)
}

func TestEmitWithNoSubscribers(t *testing.T) {
	m := newTestManager()
	assert.NotPanics(t, func() {
		m.Emit(CollectionProgress, "signals", &CollectionProgressData{Symbol: "BTC", Current: 1, Total: 2})
	})
}

func TestEventTypesMatchPayloads(t *testing.T) {
	cases := []struct {
		data EventData
		want EventType
	}{
		{&RebalanceRecommendationData{}, RebalanceRecommendation},
		{&RebalanceExecutedData{}, RebalanceExecuted},
		{&RebalanceSkippedData{}, RebalanceSkipped},
		{&RebalanceRejectedData{}, RebalanceRejected},
		{&TradeExecutedData{}, TradeExecuted},
		{&SignalDegradedData{}, SignalDegraded},
		{&CollectionProgressData{}, CollectionProgress},
		{&ErrorEventData{}, ErrorOccurred},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.data.EventType())
	}
}
