package groq

import (
	"context"
	"net/http"

	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultURL = "https://api.groq.com/openai/v1/chat/completions"

	DefaultModel       = "meta-llama/llama-4-scout-17b-16e-instruct"
	DefaultSmallModel  = "llama-3.1-8b-instant"
	endMessage         = "[DONE]"
	chunkPrefix        = "data:"
	maxStreamChunkSize = 1 << 20
)

// Client talks to the Groq chat completions API. It can stream multimodal
// responses and answer prompts with JSON schema constrained output.
type Client struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithURL(url string) ClientOption {
	return func(c *Client) {
		c.url = url
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

func NewClient(apiKey, model string, opts ...ClientOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		apiKey: apiKey,
		model:  model,
		url:    defaultURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) StreamResponse(_ context.Context, conversation conversations.Context) llms.Stream {
	return &Stream{
		apiKey:     c.apiKey,
		model:      c.model,
		url:        c.url,
		httpClient: c.httpClient,
		messages:   toMessages("", conversation.Messages),
	}
}

// PromptWithStructure sends prompt and decodes the model's answer into
// output, which must be a pointer to a struct. The JSON schema sent to the
// model is reflected from output's type.
func (c *Client) PromptWithStructure(ctx context.Context, prompt string, output any, opts ...llms.StructuredPromptOption) error {
	return promptJSONSchema(ctx, c.httpClient, c.url, c.apiKey, c.model, prompt, output, opts...)
}
