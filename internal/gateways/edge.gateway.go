package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/valyala/fasthttp"
)

const edgeFunctionPath = "/functions/v1/"

// CredentialStore resolves the bearer token of a named function.
type CredentialStore interface {
	GetByName(ctx context.Context, name string) (*model.FunctionCredential, error)
}

type EdgeConfig struct {
	BaseURL       string
	Timeout       time.Duration
	EmailFunction string

	// sender address passed to the email function, empty lets it pick
	EmailFrom string
	MaxConns  int
	Breaker   BreakerConfig
}

// EdgeClient invokes named HTTP functions, each behind its own breaker.
type EdgeClient struct {
	config      EdgeConfig
	credentials CredentialStore
	http        *fasthttp.Client

	mu      sync.Mutex
	targets map[string]*target
}

type SendEmailRequest struct {
	EmailID string `json:"email_id"`
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    string `json:"kind"`
}

type SendEmailResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func NewEdgeClient(config *EdgeConfig, credentials CredentialStore) (*EdgeClient, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("edge base url is required")
	}
	if credentials == nil {
		return nil, errors.New("credential store is required")
	}
	cfg := *config
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.EmailFunction == "" {
		cfg.EmailFunction = "send-email"
	}

	logger.Info("Edge client initialized", "url", cfg.BaseURL, "timeout", cfg.Timeout)
	return &EdgeClient{
		config:      cfg,
		credentials: credentials,
		http:        newHTTPClient(cfg.Timeout, cfg.MaxConns),
		targets:     make(map[string]*target),
	}, nil
}

func (c *EdgeClient) targetFor(function string) *target {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.targets[function]
	if !ok {
		t = newTarget("edge:"+function, c.config.BaseURL+edgeFunctionPath+function, c.http, c.config.Timeout, c.config.Breaker)
		c.targets[function] = t
	}
	return t
}

// Invoke posts payload as JSON to the function and returns the raw response body.
func (c *EdgeClient) Invoke(ctx context.Context, function string, payload any) ([]byte, error) {
	if function == "" {
		return nil, errors.New("function name is required")
	}
	cred, err := c.credentials.GetByName(ctx, function)
	if err != nil {
		return nil, fmt.Errorf("credential for %s: %w", function, err)
	}

	body := []byte("{}")
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	return c.targetFor(function).do(ctx, request{
		method: fasthttp.MethodPost,
		body:   body,
		auth: func(req *fasthttp.Request) {
			req.Header.Set("Authorization", "Bearer "+cred.Token)
		},
	})
}

func (c *EdgeClient) SendEmail(ctx context.Context, job model.EmailJob) (*SendEmailResponse, error) {
	raw, err := c.Invoke(ctx, c.config.EmailFunction, SendEmailRequest{
		EmailID: job.EmailID.String(),
		From:    c.config.EmailFrom,
		To:      job.Recipient,
		Subject: job.Subject,
		Body:    job.Body,
		Kind:    job.Kind,
	})
	if err != nil {
		return nil, err
	}

	var resp SendEmailResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	logger.Debug("Email handed to edge function", "email_id", job.EmailID, "status", resp.Status)
	return &resp, nil
}

func (c *EdgeClient) Stats() []TargetStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := make([]TargetStats, 0, len(c.targets))
	for _, t := range c.targets {
		stats = append(stats, t.stats())
	}
	return stats
}
