package events

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"wasabix/core/types"
)

type stubEvent struct {
	kind string
}

func (s stubEvent) EventType() string { return s.kind }

func (s stubEvent) Event() *types.Event {
	return &types.Event{Type: s.kind, Attributes: map[string]string{"k": "v"}}
}

func TestHubFanOutAndReplay(t *testing.T) {
	hub := NewHub(4)
	hub.Emit(stubEvent{kind: "test.before"})

	ch, replay, cancel := hub.Subscribe()
	defer cancel()
	require.Len(t, replay, 1)
	require.Equal(t, "test.before", replay[0].Type)

	hub.Emit(stubEvent{kind: "test.after"})
	got := <-ch
	require.Equal(t, "test.after", got.Type)
	require.Equal(t, "v", got.Attributes["k"])
}

func TestHubBacklogBounded(t *testing.T) {
	hub := NewHub(2)
	hub.Emit(stubEvent{kind: "test.a"})
	hub.Emit(stubEvent{kind: "test.b"})
	hub.Emit(stubEvent{kind: "test.c"})

	_, replay, cancel := hub.Subscribe()
	defer cancel()
	require.Len(t, replay, 2)
	require.Equal(t, "test.b", replay[0].Type)
	require.Equal(t, "test.c", replay[1].Type)
}

func TestHubEmitCountsEvents(t *testing.T) {
	hub := NewHub(4)
	hub.Emit(stubEvent{kind: "test.counted"})
	hub.Emit(stubEvent{kind: "test.counted"})

	require.GreaterOrEqual(t, counterValue(t, "wasabix_events_emitted_total", "test.counted"), 2.0)
}

func counterValue(t *testing.T, name, eventType string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "type" && label.GetValue() == eventType {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
