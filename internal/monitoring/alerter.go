package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowAcceptanceRate AlertType = "low_acceptance_rate"
	AlertExpiredBacklog    AlertType = "expired_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// A drop in acceptance rate usually means prices drifted out of
	// band. Only meaningful once enough quotes have been decided.
	decided := snap.QuotesAccepted + snap.QuotesRejected
	if decided >= 5 && snap.AcceptanceRate < a.cfg.AcceptanceRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertLowAcceptanceRate,
			Severity: "high",
			Message: fmt.Sprintf("quote acceptance rate %.1f%% is below threshold %.1f%%",
				snap.AcceptanceRate*100, a.cfg.AcceptanceRateThreshold*100),
			Details: map[string]any{
				"accepted":       snap.QuotesAccepted,
				"rejected":       snap.QuotesRejected,
				"lookback_hours": snap.LookbackHours,
			},
			Timestamp: now,
		})
	}

	if a.cfg.ExpiredBacklogThreshold > 0 && snap.QuotesExpired >= a.cfg.ExpiredBacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertExpiredBacklog,
			Severity: "medium",
			Message: fmt.Sprintf("%d quotes expired without a decision in the last %dh",
				snap.QuotesExpired, snap.LookbackHours),
			Details: map[string]any{
				"expired":        snap.QuotesExpired,
				"lookback_hours": snap.LookbackHours,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts each alert to the configured webhook. Returns the
// number sent successfully. Without a webhook URL alerts are only logged.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	log := zap.L().With(zap.String("component", "monitoring.alerter"))
	sent := 0
	for _, alert := range alerts {
		log.Warn("alert triggered",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
			zap.String("message", alert.Message),
		)
		if a.cfg.WebhookURL == "" {
			continue
		}
		if err := a.post(ctx, alert); err != nil {
			log.Error("monitoring: failed to send alert", zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build alert request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post alert")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return eris.Errorf("monitoring: alert webhook returned %d", resp.StatusCode)
	}
	return nil
}
