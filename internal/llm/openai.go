package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"postflow/internal/model"
)

// OpenAI generates captions with a vision-capable chat completion model.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI builds a client. baseURL may be empty for the public API.
func NewOpenAI(apiKey, chatModel, baseURL string, httpClient *http.Client) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: chatModel, maxTokens: 500}
}

func (o *OpenAI) Name() model.Provider { return model.ProviderOpenAI }

// Generate returns the assistant message content as a string.
func (o *OpenAI) Generate(ctx context.Context, req Request) (any, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s", req.ContentType, base64.StdEncoding.EncodeToString(req.Image))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: BuildPrompt(req)},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURI}},
				},
			},
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError marks client errors other than rate limiting as permanent.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && isPermanentStatus(apiErr.HTTPStatusCode) {
		return &permanentError{err: fmt.Errorf("openai: %w", err)}
	}
	return fmt.Errorf("openai: %w", err)
}

func isPermanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
}

// permanentError tells Resilient not to retry.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }
