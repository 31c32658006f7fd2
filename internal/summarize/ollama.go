package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sifterrors "github.com/codesift/codesift/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultModel is the default summarization model
	DefaultModel = "qwen3:0.6b"

	// DefaultTimeout bounds one summarization round trip
	DefaultTimeout = 30 * time.Second

	// connectTimeout bounds the availability probe
	connectTimeout = 5 * time.Second
)

// OllamaConfig configures the Ollama summarizer
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// ollamaGenerateRequest is the /api/generate request body
type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// ollamaGenerateResponse is the /api/generate response body
type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// OllamaSummarizer generates chunk summaries through a local Ollama
// server. Every call is bounded by the configured timeout so the
// pipeline can never hang on a stuck model.
type OllamaSummarizer struct {
	config OllamaConfig
	client *http.Client
}

// NewOllamaSummarizer creates an Ollama-backed summarizer
func NewOllamaSummarizer(cfg OllamaConfig) *OllamaSummarizer {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OllamaSummarizer{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Summarize asks the model for a `# `-prefixed summary of the code unit
func (s *OllamaSummarizer) Summarize(ctx context.Context, code, language, unitKind, unitName string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	prompt := buildPrompt(code, language, unitKind, unitName)
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": 0.1,
			"top_p":       0.9,
			"num_predict": 200,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeSummarizationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, sifterrors.New(sifterrors.ErrCodeSummarizationFailed,
			fmt.Sprintf("ollama api error: %d - %s", resp.StatusCode, string(respBody)), nil)
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeSummarizationFailed, fmt.Errorf("decode response: %w", err))
	}

	summary := cleanSummary(result.Response)
	if summary == "" || summary == "#" {
		return nil, sifterrors.New(sifterrors.ErrCodeSummarizationFailed, "empty summary from model", nil)
	}

	return &Result{
		Summary:  summary,
		Combined: Combine(summary, code),
		Tokens:   WordCount(code) + WordCount(summary),
	}, nil
}

// Available checks the Ollama server's /api/tags endpoint
func (s *OllamaSummarizer) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases resources
func (s *OllamaSummarizer) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// buildPrompt asks for a one-comment summary of the unit
func buildPrompt(code, language, unitKind, unitName string) string {
	namePart := ""
	if unitName != "" {
		namePart = fmt.Sprintf(" named '%s'", unitName)
	}

	return fmt.Sprintf(`You are a code analysis expert. Please provide a concise summary of the following %s %s%s.

Code:
`+"```%s\n%s\n```"+`

Please provide a clear, concise summary that explains:
1. What this code does
2. Its main purpose or functionality
3. Any important details about inputs, outputs, or behavior

Format your response as a brief comment starting with "# " followed by your summary.

Summary:`, language, unitKind, namePart, language, code)
}

// cleanSummary strips markdown fences and forces the `# ` prefix
func cleanSummary(summary string) string {
	summary = strings.ReplaceAll(summary, "```", "")
	summary = strings.ReplaceAll(summary, "`", "")
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return summary
	}
	if !strings.HasPrefix(summary, "#") {
		summary = "# " + summary
	}
	return strings.TrimSpace(summary)
}

var _ Summarizer = (*OllamaSummarizer)(nil)
