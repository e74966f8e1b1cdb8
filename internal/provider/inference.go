package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/leadintel/internal/domain"
)

// InferenceConfig configures an InferenceClient.
type InferenceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// InferenceClient calls a hosted model-inference endpoint.
type InferenceClient struct {
	cfg InferenceConfig
	t   transport
}

// NewInferenceClient creates an inference client. A nil httpClient uses a pooled default.
func NewInferenceClient(cfg InferenceConfig, httpClient *http.Client, logger *slog.Logger) *InferenceClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &InferenceClient{
		cfg: cfg,
		t:   newTransport(domain.ProviderInference, httpClient, cfg.Timeout, logger),
	}
}

// Run posts payload to the model endpoint and returns the 2xx body verbatim.
// The body is not required to be JSON.
func (c *InferenceClient) Run(ctx context.Context, token, model string, payload any) (json.RawMessage, error) {
	data, err := c.t.doJSON(ctx, c.cfg.BaseURL+"/models/"+model, token, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
