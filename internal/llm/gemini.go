package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"postflow/internal/model"
)

// Gemini calls the generateContent REST endpoint with the image inlined.
type Gemini struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewGemini builds a client for baseURL (e.g. https://generativelanguage.googleapis.com/v1beta).
func NewGemini(apiKey, genModel, baseURL string, httpClient *http.Client) *Gemini {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Gemini{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: genModel}
}

func (g *Gemini) Name() model.Provider { return model.ProviderGemini }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"responseMimeType"`
		MaxOutputTokens  int    `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate returns the concatenated text parts of the first candidate.
func (g *Gemini) Generate(ctx context.Context, req Request) (any, error) {
	var body geminiRequest
	body.Contents = []geminiContent{{
		Role: "user",
		Parts: []geminiPart{
			{Text: BuildPrompt(req)},
			{InlineData: &geminiInlineData{MimeType: req.ContentType, Data: base64.StdEncoding.EncodeToString(req.Image)}},
		},
	}}
	body.GenerationConfig.ResponseMimeType = "application/json"
	body.GenerationConfig.MaxOutputTokens = 500

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}

	var out geminiResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != nil {
			msg = out.Error.Message
		}
		err := fmt.Errorf("gemini: status %d: %s", resp.StatusCode, msg)
		if isPermanentStatus(resp.StatusCode) {
			return nil, &permanentError{err: err}
		}
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", decodeErr)
	}

	if len(out.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}
	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if text.Len() == 0 {
		return nil, ErrEmptyResponse
	}
	return text.String(), nil
}
