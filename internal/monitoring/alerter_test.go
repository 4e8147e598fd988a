package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricing-engine/internal/config"
)

func monitoringCfg() config.MonitoringConfig {
	return config.MonitoringConfig{
		Enabled:                 true,
		AcceptanceRateThreshold: 0.2,
		ExpiredBacklogThreshold: 10,
		LookbackWindowHours:     24,
	}
}

func TestEvaluateNoAlerts(t *testing.T) {
	a := NewAlerter(monitoringCfg())
	snap := &MetricsSnapshot{
		QuotesAccepted: 8,
		QuotesRejected: 2,
		AcceptanceRate: 0.8,
		QuotesExpired:  3,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluateLowAcceptanceRate(t *testing.T) {
	a := NewAlerter(monitoringCfg())
	snap := &MetricsSnapshot{
		QuotesAccepted: 1,
		QuotesRejected: 9,
		AcceptanceRate: 0.1,
		LookbackHours:  24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowAcceptanceRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "10.0%")
}

func TestEvaluateRequiresMinimumDecisions(t *testing.T) {
	a := NewAlerter(monitoringCfg())
	// Only 2 decided quotes: too few to trigger the rate alert.
	snap := &MetricsSnapshot{
		QuotesAccepted: 0,
		QuotesRejected: 2,
		AcceptanceRate: 0,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluateExpiredBacklog(t *testing.T) {
	a := NewAlerter(monitoringCfg())
	snap := &MetricsSnapshot{
		QuotesAccepted: 5,
		QuotesRejected: 1,
		AcceptanceRate: 5.0 / 6.0,
		QuotesExpired:  25,
		LookbackHours:  24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertExpiredBacklog, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
}

func TestSendAlertsPostsWebhook(t *testing.T) {
	var received Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := monitoringCfg()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertExpiredBacklog, Severity: "medium", Message: "backlog"},
	})
	assert.Equal(t, 1, sent)
	assert.Equal(t, AlertExpiredBacklog, received.Type)
}

func TestSendAlertsWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := monitoringCfg()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertLowAcceptanceRate, Message: "rate"},
	})
	assert.Equal(t, 0, sent)
}

func TestSendAlertsNoWebhookLogsOnly(t *testing.T) {
	a := NewAlerter(monitoringCfg())
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertLowAcceptanceRate, Message: "rate"},
	})
	assert.Equal(t, 0, sent)
}
