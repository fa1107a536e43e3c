package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	t.Run("DispatcherEvents", func(t *testing.T) {
		DispatcherEvents.WithLabelValues("join-room", "ok").Inc()
		val := testutil.ToFloat64(DispatcherEvents.WithLabelValues("join-room", "ok"))
		if val < 1 {
			t.Errorf("expected DispatcherEvents to be at least 1, got %v", val)
		}
	})

	t.Run("MessageProcessingDuration", func(t *testing.T) {
		MessageProcessingDuration.WithLabelValues("join-room").Observe(0.01)
	})

	t.Run("RoomParticipants", func(t *testing.T) {
		RoomParticipants.WithLabelValues("ABC123").Set(3)
		val := testutil.ToFloat64(RoomParticipants.WithLabelValues("ABC123"))
		if val != 3 {
			t.Errorf("expected RoomParticipants to be 3, got %v", val)
		}
	})

	t.Run("IncDecConnection", func(t *testing.T) {
		before := testutil.ToFloat64(ActiveWebSocketConnections)
		IncConnection()
		if after := testutil.ToFloat64(ActiveWebSocketConnections); after != before+1 {
			t.Errorf("expected ActiveWebSocketConnections to increase by 1, got %v -> %v", before, after)
		}
		DecConnection()
		if after := testutil.ToFloat64(ActiveWebSocketConnections); after != before {
			t.Errorf("expected ActiveWebSocketConnections to return to %v, got %v", before, after)
		}
	})
}
