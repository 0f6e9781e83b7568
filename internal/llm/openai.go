package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1/"

// OpenAIClient calls a Chat Completions API. It serves OpenAI itself and Groq.
type OpenAIClient struct {
	name      string
	model     openai.ChatModel
	client    *openai.Client
	strict    bool
	timeout   time.Duration
	maxTokens int
}

// NewOpenAIClient builds a client against api.openai.com using strict JSON schema output.
func NewOpenAIClient(apiKey, model string, opts Options) (*OpenAIClient, error) {
	return newChatClient("openai", apiKey, model, opts, true)
}

// NewGroqClient builds a client against Groq. Groq only honours JSON object mode, so the
// schema travels in the system prompt.
func NewGroqClient(apiKey, model string, opts Options) (*OpenAIClient, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = GroqBaseURL
	}
	return newChatClient("groq", apiKey, model, opts, false)
}

func newChatClient(name, apiKey, model string, opts Options, strict bool) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: api key required", name)
	}
	if model == "" {
		return nil, fmt.Errorf("%s: model required", name)
	}
	opts = opts.withDefaults()
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	return &OpenAIClient{
		name:      name,
		model:     openai.ChatModel(model),
		client:    &cli,
		strict:    strict,
		timeout:   opts.Timeout,
		maxTokens: opts.MaxTokens,
	}, nil
}

func (c *OpenAIClient) Classify(ctx context.Context, req Request) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("nil %s client", c.label())
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            buildMessages(req.System, req.User),
		Temperature:         openai.Float(0),
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
		ResponseFormat:      c.responseFormat(req),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%s: %w: %v", c.name, ErrRateLimited, err)
		}
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		if len(resp.Choices) > 0 && resp.Choices[0].Message.Refusal != "" {
			return "", fmt.Errorf("%s: model refused: %s", c.name, resp.Choices[0].Message.Refusal)
		}
		return "", fmt.Errorf("%s: %w", c.name, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) responseFormat(req Request) openai.ChatCompletionNewParamsResponseFormatUnion {
	if !c.strict || req.Schema == nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   schemaName(req),
				Schema: req.Schema.Map(),
				Strict: openai.Bool(true),
			},
		},
	}
}

func (c *OpenAIClient) label() string {
	if c == nil {
		return "openai"
	}
	return c.name
}

func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(user),
				},
			},
		},
	}
}
