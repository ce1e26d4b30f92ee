package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"priorauth-backend/models"

	"github.com/google/generative-ai-go/genai"
)

const (
	defaultScoringAPI = "https://generativelanguage.googleapis.com/v1beta/models/gemini-3-pro-preview:generateContent"
	extractionModel   = "gemini-3-pro-preview"
	maxRetries        = 3
	initialBackoff    = time.Second
)

var (
	ErrClientNotSet  = errors.New("gemini client not set")
	ErrEmptyResponse = errors.New("scoring service returned empty content")
	ErrAPIKeyNotSet  = errors.New("GEMINI_API_KEY not set")
	ErrNoJSONInReply = errors.New("no JSON object found in scoring response")
)

// apiError carries the HTTP status of a failed scoring call so the
// retry loop can distinguish client errors from transient failures.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.Status, e.Body)
}

// retryable reports whether a failed attempt is worth repeating.
// 400/401 never recover on retry.
func retryable(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status != http.StatusBadRequest && ae.Status != http.StatusUnauthorized
	}
	return true
}

// GeminiClient implements Client against the Gemini API. Entity
// extraction goes through the genai SDK in JSON mode; evidence scoring
// calls the generateContent endpoint directly.
type GeminiClient struct {
	apiKey     string
	genaiCli   *genai.Client
	endpoint   string
	httpClient *http.Client
	backoff    time.Duration
}

// GeminiOption is a functional option for GeminiClient
type GeminiOption func(*GeminiClient)

// WithAPIKey sets the API key for direct HTTP calls
func WithAPIKey(key string) GeminiOption {
	return func(c *GeminiClient) {
		c.apiKey = key
	}
}

// WithGenaiClient sets the genai SDK client used for entity extraction
func WithGenaiClient(cli *genai.Client) GeminiOption {
	return func(c *GeminiClient) {
		c.genaiCli = cli
	}
}

// WithEndpoint overrides the scoring endpoint
func WithEndpoint(url string) GeminiOption {
	return func(c *GeminiClient) {
		c.endpoint = url
	}
}

// WithHTTPClient sets the HTTP client used for scoring calls
func WithHTTPClient(hc *http.Client) GeminiOption {
	return func(c *GeminiClient) {
		c.httpClient = hc
	}
}

// WithInitialBackoff sets the first retry delay
func WithInitialBackoff(d time.Duration) GeminiOption {
	return func(c *GeminiClient) {
		c.backoff = d
	}
}

// NewGeminiClient creates a new Gemini-backed scoring client
func NewGeminiClient(opts ...GeminiOption) *GeminiClient {
	c := &GeminiClient{
		endpoint:   defaultScoringAPI,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		backoff:    initialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractEntities asks the model for structured clinical entities and
// per-entity confidence scores, retrying transient failures.
func (c *GeminiClient) ExtractEntities(ctx context.Context, clinicalData models.ClinicalData) (*EntityExtraction, error) {
	if c.genaiCli == nil {
		return nil, ErrClientNotSet
	}

	dataJSON, err := json.Marshal(clinicalData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal clinical data: %w", err)
	}

	prompt := fmt.Sprintf(`You are a clinical data extraction engine for prior-authorization review.

CLINICAL DATA:
%s

TASK:
Extract the following clinical entities from the data above:
diagnosis, medications, lab_results, treatment_history, contraindications, allergies

OUTPUT REQUIREMENTS:
- Respond with a single JSON object, no prose, no markdown
- Shape: {"entities": {"<name>": {"confidence": <0..1>, "value": <extracted value>}}, "confidence_scores": {"<name>": <0..1>}}
- Omit entities that are absent from the data; do not invent values
- confidence reflects how certain the extraction is, not clinical severity`, string(dataJSON))

	model := c.genaiCli.GenerativeModel(extractionModel)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.1)

	var lastErr error
	backoff := c.backoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		text := collectText(resp)
		if text == "" {
			lastErr = ErrEmptyResponse
			continue
		}

		extraction, err := parseExtraction(text)
		if err != nil {
			lastErr = err
			continue
		}
		return extraction, nil
	}

	return nil, &ScoringError{Op: "entity extraction", Attempts: maxRetries, Err: lastErr}
}

// ScoreEvidence rates one evidence item against one criterion's
// requirements, returning a confidence in [0,1].
func (c *GeminiClient) ScoreEvidence(ctx context.Context, clinicalData models.ClinicalData, requirements models.Requirements, requestID string) (float64, error) {
	dataJSON, err := json.Marshal(clinicalData)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal clinical data: %w", err)
	}
	reqJSON, err := json.Marshal(requirements)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal requirements: %w", err)
	}

	prompt := fmt.Sprintf(`You are a utilization-review engine scoring clinical evidence against a coverage policy criterion.

REQUEST: %s

POLICY CRITERION REQUIREMENTS:
%s

CLINICAL EVIDENCE:
%s

TASK:
Rate how well the evidence satisfies the criterion requirements.

OUTPUT REQUIREMENTS:
- Respond with a single JSON object, no prose, no markdown
- Shape: {"confidence": <0..1>}
- 1.0 means the evidence fully and unambiguously satisfies the requirements
- 0.0 means the evidence is unrelated or contradicts the requirements
- Judge only what the evidence states; do not assume unstated facts`, requestID, string(reqJSON), string(dataJSON))

	var lastErr error
	backoff := c.backoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		text, err := c.callScoringAPI(ctx, prompt, 0.1)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if !retryable(err) {
				break
			}
			continue
		}

		confidence, err := parseConfidence(text)
		if err != nil {
			lastErr = err
			continue
		}
		return confidence, nil
	}

	return 0, &ScoringError{Op: "evidence scoring", Attempts: maxRetries, Err: lastErr}
}

// callScoringAPI calls the Gemini generation endpoint directly via HTTP
func (c *GeminiClient) callScoringAPI(ctx context.Context, prompt string, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", ErrAPIKeyNotSet
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      temperature,
			"responseMimeType": "application/json",
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason,omitempty"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason,omitempty"`
		} `json:"promptFeedback,omitempty"`
		Error struct {
			Code    int    `json:"code,omitempty"`
			Message string `json:"message,omitempty"`
		} `json:"error,omitempty"`
	}

	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if apiResp.Error.Message != "" {
		return "", fmt.Errorf("API error: %s (code: %d)", apiResp.Error.Message, apiResp.Error.Code)
	}

	if apiResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("API blocked prompt: %s", apiResp.PromptFeedback.BlockReason)
	}

	if len(apiResp.Candidates) == 0 {
		return "", fmt.Errorf("API returned no candidates")
	}

	var responseText strings.Builder
	for i, candidate := range apiResp.Candidates {
		if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
			log.Printf("Warning: Candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			responseText.WriteString(part.Text)
		}
	}

	result := responseText.String()
	if result == "" {
		return "", ErrEmptyResponse
	}

	return result, nil
}

// collectText flattens the text parts of a genai response.
func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
	}
	return builder.String()
}

// extractJSON pulls the JSON object out of a model reply, tolerating
// markdown fences and surrounding prose.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSONInReply
	}

	return text[start : end+1], nil
}

// parseExtraction decodes an entity-extraction reply.
func parseExtraction(text string) (*EntityExtraction, error) {
	jsonText, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var extraction EntityExtraction
	if err := json.Unmarshal([]byte(jsonText), &extraction); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}

	if extraction.Entities == nil {
		extraction.Entities = make(map[string]ExtractedEntity)
	}
	if extraction.ConfidenceScores == nil {
		extraction.ConfidenceScores = make(map[string]float64)
	}

	return &extraction, nil
}

// parseConfidence decodes a scoring reply and clamps it into [0,1].
func parseConfidence(text string) (float64, error) {
	jsonText, err := extractJSON(text)
	if err != nil {
		return 0, err
	}

	var reply struct {
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(jsonText), &reply); err != nil {
		return 0, fmt.Errorf("failed to decode confidence: %w", err)
	}

	if reply.Confidence < 0 {
		return 0, nil
	}
	if reply.Confidence > 1 {
		return 1, nil
	}
	return reply.Confidence, nil
}
