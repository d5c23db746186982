package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/config"
	"scouter/profile"
	"scouter/transport"
)

// AgentResponse is what a JudgeClient returns for one task invocation:
// either free text (ResponseText/ResponseJSON tasks) or a Score
// (ResponseScore tasks, required on every terminal task).
type AgentResponse struct {
	Text  string
	Score *profile.Score
}

// JudgeClient is the abstract LLM-judge capability: run a rendered prompt
// and get back a response shaped the way responseType asks for. Concrete
// provider SDKs (OpenAI, Gemini, Vertex) are external collaborators; the
// executor only ever sees this interface.
type JudgeClient interface {
	Run(ctx context.Context, prompt string, responseType profile.ResponseType) (AgentResponse, error)
}

type judgeRequest struct {
	Prompt       string `json:"prompt"`
	ResponseType string `json:"response_type"`
}

type judgeResponseWire struct {
	Text  string         `json:"text,omitempty"`
	Score *profile.Score `json:"score,omitempty"`
}

// httpJudgeClient calls a judge server over HTTP, retried with the same
// exponential backoff every other outbound call in this module uses.
type httpJudgeClient struct {
	uri      string
	username string
	password string
	token    string
	client   *http.Client
	retrier  transport.Retrier
}

// NewHTTPJudgeClient builds a JudgeClient from cfg. When JudgeAuthToken is
// set it is sent as a bearer token; otherwise JudgeUsername/JudgePassword
// are sent as HTTP basic auth, matching the two credential shapes
// pkg/config.WorkflowConfig exposes.
func NewHTTPJudgeClient(cfg config.WorkflowConfig) JudgeClient {
	return &httpJudgeClient{
		uri:      cfg.JudgeServerURI,
		username: cfg.JudgeUsername,
		password: cfg.JudgePassword,
		token:    cfg.JudgeAuthToken,
		client:   &http.Client{Timeout: 30 * time.Second},
		retrier:  transport.NewRetrier(),
	}
}

func (c *httpJudgeClient) Run(ctx context.Context, prompt string, responseType profile.ResponseType) (AgentResponse, error) {
	body, err := json.Marshal(judgeRequest{Prompt: prompt, ResponseType: string(responseType)})
	if err != nil {
		return AgentResponse{}, apperror.Wrap(err, apperror.CodeMalformedPayload, "failed to encode judge request")
	}

	var out AgentResponse
	err = c.retrier.Do(ctx, "judge", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uri, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		} else if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeJudgeUnavailable, "judge request failed")
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return apperror.New(apperror.CodeJudgeUnavailable, fmt.Sprintf("judge server responded %d", resp.StatusCode))
		}

		var wire judgeResponseWire
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return apperror.Wrap(err, apperror.CodeMalformedPayload, "failed to decode judge response")
		}
		out = AgentResponse{Text: wire.Text, Score: wire.Score}
		return nil
	})
	if err != nil {
		return AgentResponse{}, err
	}
	return out, nil
}
