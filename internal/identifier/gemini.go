package identifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Options configures the Gemini generator.
type Options struct {
	APIKey          string
	Model           string
	Endpoint        string
	Temperature     float64
	TopK            int64
	TopP            float64
	MaxOutputTokens int64
	// HTTPClient is the base client; its transport gets the API key header.
	HTTPClient *http.Client
}

// GeminiGenerator calls the generateContent method of the Generative Language API.
type GeminiGenerator struct {
	service *generativelanguage.Service
	model   string
	config  *generativelanguage.GenerationConfig
	logger  *zap.Logger
}

type apiKeyTransport struct {
	rt  http.RoundTripper
	key string
}

func (t apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := req.Clone(req.Context())
	cl.Header.Set("X-Goog-Api-Key", t.key)
	return t.rt.RoundTrip(cl)
}

// NewGeminiGenerator builds a generator. The API key is mandatory.
func NewGeminiGenerator(ctx context.Context, opts Options, logger *zap.Logger) (*GeminiGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: apiKeyTransport{rt: rt, key: opts.APIKey},
		Timeout:   base.Timeout,
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	service, err := generativelanguage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}

	model := opts.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	return &GeminiGenerator{
		service: service,
		model:   model,
		config: &generativelanguage.GenerationConfig{
			Temperature:     opts.Temperature,
			TopK:            opts.TopK,
			TopP:            opts.TopP,
			MaxOutputTokens: opts.MaxOutputTokens,
		},
		logger: logger.Named("gemini"),
	}, nil
}

// Generate sends the prompt and the base64 payload as one user turn and
// returns the text of the first candidate's first part.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt, mimeType, payload string) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Parts: []*generativelanguage.Part{
				{Text: prompt},
				{InlineData: &generativelanguage.Blob{MimeType: mimeType, Data: payload}},
			},
		}},
		GenerationConfig: g.config,
	}

	resp, err := g.service.Models.GenerateContent(g.model, req).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			g.logger.Warn("generateContent rejected", zap.Int("status", apiErr.Code), zap.String("message", apiErr.Message))
			return "", fmt.Errorf("generateContent: status %d: %w", apiErr.Code, err)
		}
		return "", fmt.Errorf("generateContent: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &ClassificationError{Kind: KindMalformed, Detail: "response has no candidate text"}
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
