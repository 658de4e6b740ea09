package advice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

var ErrEmptyResponse = errors.New("advice model returned no text")

// GeminiConfig configures the generative-language adapter.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Endpoint string       // optional, overrides the public endpoint
	HTTP     *http.Client // optional
}

// Gemini calls the generateContent method of the generative-language API
// over its REST transport.
type Gemini struct {
	client *generativelanguage.GenerativeClient
	model  string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimSuffix(cfg.Endpoint, "/")))
	}
	if cfg.HTTP != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTP))
	}
	client, err := generativelanguage.NewGenerativeRESTClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create generative language client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	req := &generativelanguagepb.GenerateContentRequest{
		Model: g.model,
		Contents: []*generativelanguagepb.Content{{
			Role: "user",
			Parts: []*generativelanguagepb.Part{{
				Data: &generativelanguagepb.Part_Text{Text: prompt},
			}},
		}},
	}
	resp, err := g.client.GenerateContent(ctx, req)
	if err != nil {
		return "", classifyGemini(ctx, err)
	}
	var b strings.Builder
	for _, c := range resp.GetCandidates() {
		for _, p := range c.GetContent().GetParts() {
			b.WriteString(p.GetText())
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: %w", ErrUnknown, ErrEmptyResponse)
	}
	return b.String(), nil
}

// Close releases the underlying HTTP client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func classifyGemini(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	// REST failures surface as *apierror.APIError wrapping the *googleapi.Error.
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusRequestTimeout, apiErr.Code == http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
