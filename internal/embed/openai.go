package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrAPIKeyNotSet is returned when the OpenAI backend has no key.
var ErrAPIKeyNotSet = errors.New("openai api key not set")

// OpenAIBackend uses the OpenAI embeddings API, or any server that speaks it.
type OpenAIBackend struct {
	client    openai.Client
	model     string
	dimension int
}

type openAIOptions struct {
	baseURL   string
	dimension int
	timeout   time.Duration
}

// OpenAIOption configures an OpenAIBackend.
type OpenAIOption func(*openAIOptions)

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(u string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = u }
}

// WithDimensions requests shortened vectors from models that support it.
func WithDimensions(n int) OpenAIOption {
	return func(o *openAIOptions) { o.dimension = n }
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) OpenAIOption {
	return func(o *openAIOptions) { o.timeout = d }
}

func NewOpenAIBackend(apiKey, model string, opts ...OpenAIOption) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	var o openAIOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Retries are handled by Client.
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(o.timeout))
	}

	return &OpenAIBackend{
		client:    openai.NewClient(reqOpts...),
		model:     model,
		dimension: o.dimension,
	}, nil
}

func (b *OpenAIBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(b.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if b.dimension > 0 {
		params.Dimensions = openai.Int(int64(b.dimension))
	}

	resp, err := b.client.Embeddings.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && isRetryableStatus(apiErr.StatusCode) {
			return nil, &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embedding for model %s", b.model)
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
