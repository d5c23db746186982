package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/config"
	"scouter/pkg/logger"
	"scouter/transport"
)

// ConsoleDispatcher logs each alert through the structured logger. It is
// always available and needs no configuration, matching spec's "console"
// backend.
type ConsoleDispatcher struct{}

func (ConsoleDispatcher) Dispatch(_ context.Context, a Alert) error {
	logger.Warn("evaluator: drift alert fired",
		"entity_id", a.EntityID, "drift_type", a.DriftType, "feature", a.Feature,
		"kind", a.Kind, "value", a.Value)
	return nil
}

// webhookDispatcher POSTs a JSON payload to a fixed URL, retried with the
// same exponential backoff as the outbound record producers in package
// transport. buildPayload lets Slack and OpsGenie format the body
// differently from the same plumbing.
type webhookDispatcher struct {
	name         string
	url          string
	client       *http.Client
	retrier      transport.Retrier
	buildPayload func(Alert) any
	headers      map[string]string
}

func newWebhookDispatcher(name, url string, buildPayload func(Alert) any, headers map[string]string) *webhookDispatcher {
	return &webhookDispatcher{
		name:         name,
		url:          url,
		client:       &http.Client{Timeout: 10 * time.Second},
		retrier:      transport.NewRetrier(),
		buildPayload: buildPayload,
		headers:      headers,
	}
}

func (d *webhookDispatcher) Dispatch(ctx context.Context, a Alert) error {
	body, err := json.Marshal(d.buildPayload(a))
	if err != nil {
		return apperror.Wrap(err, apperror.CodeMalformedPayload, "failed to encode "+d.name+" payload")
	}
	return d.retrier.Do(ctx, d.name, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range d.headers {
			req.Header.Set(k, v)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeTransportExhausted, d.name+" dispatch failed")
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return apperror.New(apperror.CodeTransportExhausted, fmt.Sprintf("%s webhook responded %d", d.name, resp.StatusCode))
		}
		return nil
	})
}

// NewSlackDispatcher posts a plain Slack "incoming webhook" message.
func NewSlackDispatcher(webhookURL string) Dispatcher {
	return newWebhookDispatcher("slack", webhookURL, func(a Alert) any {
		return map[string]string{
			"text": fmt.Sprintf("drift alert: %s/%s feature=%s kind=%s value=%.4f",
				a.EntityID, a.DriftType, a.Feature, a.Kind, a.Value),
		}
	}, nil)
}

// opsGenieAlertPayload is OpsGenie's "Create Alert" request shape, trimmed
// to the fields this dispatcher populates.
type opsGenieAlertPayload struct {
	Message string            `json:"message"`
	Alias   string            `json:"alias"`
	Details map[string]string `json:"details"`
}

// NewOpsGenieDispatcher posts to OpsGenie's alert API, authenticated with
// a GenieKey API key rather than a bare webhook URL.
func NewOpsGenieDispatcher(apiURL, apiKey string) Dispatcher {
	return newWebhookDispatcher("opsgenie", apiURL, func(a Alert) any {
		return opsGenieAlertPayload{
			Message: fmt.Sprintf("drift alert on %s", a.EntityID),
			Alias:   a.EntityID + "/" + a.Feature,
			Details: map[string]string{
				"drift_type": string(a.DriftType),
				"feature":    a.Feature,
				"kind":       a.Kind,
				"value":      fmt.Sprintf("%.4f", a.Value),
			},
		}
	}, map[string]string{"Authorization": "GenieKey " + apiKey})
}

// MultiDispatcher fans an alert out to every configured backend. Dispatch
// keeps going after a backend failure and returns the first error seen,
// so one bad webhook never suppresses notifications to the rest.
type MultiDispatcher struct {
	backends []Dispatcher
}

func NewMultiDispatcher(backends ...Dispatcher) *MultiDispatcher {
	return &MultiDispatcher{backends: backends}
}

func (m *MultiDispatcher) Dispatch(ctx context.Context, a Alert) error {
	var first error
	for _, d := range m.backends {
		if err := d.Dispatch(ctx, a); err != nil {
			logger.Error("evaluator: alert dispatch failed", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// DispatcherFromConfig builds the MultiDispatcher named by cfg.Backends,
// in the order they're listed. Unknown backend names are skipped with a
// logged warning rather than failing startup.
func DispatcherFromConfig(cfg config.AlertConfig) *MultiDispatcher {
	var backends []Dispatcher
	for _, name := range cfg.Backends {
		switch name {
		case "console":
			backends = append(backends, ConsoleDispatcher{})
		case "slack":
			if cfg.SlackWebhook == "" {
				logger.Warn("evaluator: slack backend configured without a webhook url, skipping")
				continue
			}
			backends = append(backends, NewSlackDispatcher(cfg.SlackWebhook))
		case "opsgenie":
			if cfg.OpsGenieKey == "" {
				logger.Warn("evaluator: opsgenie backend configured without an api key, skipping")
				continue
			}
			backends = append(backends, NewOpsGenieDispatcher("https://api.opsgenie.com/v2/alerts", cfg.OpsGenieKey))
		default:
			logger.Warn("evaluator: unknown alert backend, skipping", "backend", name)
		}
	}
	if len(backends) == 0 {
		backends = append(backends, ConsoleDispatcher{})
	}
	return NewMultiDispatcher(backends...)
}
