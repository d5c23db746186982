package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"scouter/pkg/apperror"
	"scouter/wire"
)

// HTTPConfig configures an HTTPProducer.
type HTTPConfig struct {
	URI     string
	Auth    Auth
	Client  *http.Client
	Retrier Retrier
}

// HTTPConfigFromEnv reads SCOUTER_SERVER_URI / SCOUTER_USERNAME /
// SCOUTER_PASSWORD / SCOUTER_AUTH_TOKEN. GRPCConfig has no env reader of
// its own.
func HTTPConfigFromEnv() HTTPConfig {
	return HTTPConfig{
		URI: os.Getenv("SCOUTER_SERVER_URI"),
		Auth: Auth{
			Username: os.Getenv("SCOUTER_USERNAME"),
			Password: os.Getenv("SCOUTER_PASSWORD"),
			Token:    os.Getenv("SCOUTER_AUTH_TOKEN"),
		},
	}
}

// HTTPProducer ships one POST per batch to the server's ingestion
// endpoint, carrying the batch as a canonical JSON array.
type HTTPProducer struct {
	uri     string
	auth    Auth
	client  *http.Client
	retrier Retrier
}

// NewHTTPProducer builds an HTTPProducer from cfg, applying the shared
// default retry policy and a 30s client timeout when unset.
func NewHTTPProducer(cfg HTTPConfig) (*HTTPProducer, error) {
	if cfg.URI == "" {
		return nil, apperror.New(apperror.CodeInvalidArgument, "http producer requires a server uri")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	retrier := cfg.Retrier
	if retrier.MaxRetries == 0 {
		retrier = NewRetrier()
	}
	return &HTTPProducer{uri: cfg.URI, auth: cfg.Auth, client: client, retrier: retrier}, nil
}

// Send POSTs the whole batch as one canonical-JSON array.
func (p *HTTPProducer) Send(ctx context.Context, records []wire.Record) error {
	if len(records) == 0 {
		return nil
	}
	body, err := json.Marshal(records)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeMalformedPayload, "failed to encode http batch")
	}
	return p.retrier.Do(ctx, "http", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uri, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		p.applyAuth(req)

		resp, err := p.client.Do(req)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeTransportExhausted, "http send failed")
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return apperror.New(apperror.CodeTransportExhausted, fmt.Sprintf("http server responded %d", resp.StatusCode))
		}
		return nil
	})
}

func (p *HTTPProducer) applyAuth(req *http.Request) {
	switch {
	case p.auth.hasToken():
		req.Header.Set("Authorization", "Bearer "+p.auth.Token)
	case p.auth.hasBasic():
		req.SetBasicAuth(p.auth.Username, p.auth.Password)
	}
}

// Close releases idle connections; HTTP has no persistent session to
// flush beyond whatever Send has already completed.
func (p *HTTPProducer) Close(ctx context.Context) error {
	p.client.CloseIdleConnections()
	return nil
}
