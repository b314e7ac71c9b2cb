package dates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLMConfig configures the model used for fallback date parsing.
type LLMConfig struct {
	// BaseURL is the OpenAI-compatible API endpoint.
	BaseURL string
	// Model is the model identifier.
	Model string
	// APIKey authenticates against the endpoint.
	APIKey string
	// Timeout bounds a single fallback call.
	Timeout time.Duration
}

// LLMFallback parses date text with a language model when the rule-based
// parser fails. The model is asked for a strict JSON object so the answer
// can be decoded without scraping.
type LLMFallback struct {
	llm     llms.Model
	timeout time.Duration
}

// NewLLMFallback builds a fallback from config. APIKey may be empty for
// endpoints that do not authenticate.
func NewLLMFallback(cfg LLMConfig) (*LLMFallback, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("fallback model is required")
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "not-needed"
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create fallback llm: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMFallback{llm: llm, timeout: timeout}, nil
}

const fallbackPromptFmt = `Parse the date/time expression below into an absolute timestamp.
Current date and time: %s (%s).

Expression: %q

Respond with ONLY a JSON object, no prose:
{"success": true, "year": N, "month": N, "day": N, "hour": N, "minute": N, "confidence": 0.0-1.0}
Use hour 23 and minute 59 when no time of day is given.
If the expression is not a date, respond {"success": false}.`

type fallbackAnswer struct {
	Success    bool    `json:"success"`
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	Day        int     `json:"day"`
	Hour       int     `json:"hour"`
	Minute     int     `json:"minute"`
	Confidence float64 `json:"confidence"`
}

// ParseDate implements Fallback.
func (f *LLMFallback) ParseDate(ctx context.Context, text string, now time.Time) (time.Time, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	prompt := fmt.Sprintf(fallbackPromptFmt, now.Format("2006-01-02 15:04"), now.Weekday(), text)
	raw, err := llms.GenerateFromSinglePrompt(ctx, f.llm, prompt,
		llms.WithTemperature(0),
		llms.WithMaxTokens(200),
	)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("fallback completion: %w", err)
	}

	var ans fallbackAnswer
	if err := json.Unmarshal([]byte(extractJSON(raw)), &ans); err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: fallback returned non-JSON", ErrUnparseable)
	}
	if !ans.Success {
		return time.Time{}, 0, fmt.Errorf("%w: %q", ErrUnparseable, text)
	}
	if ans.Month < 1 || ans.Month > 12 || ans.Day < 1 || ans.Day > 31 ||
		ans.Hour < 0 || ans.Hour > 23 || ans.Minute < 0 || ans.Minute > 59 {
		return time.Time{}, 0, fmt.Errorf("%w: fallback returned out-of-range fields", ErrUnparseable)
	}

	t := time.Date(ans.Year, time.Month(ans.Month), ans.Day, ans.Hour, ans.Minute, 0, 0, now.Location())
	conf := ans.Confidence
	if conf <= 0 || conf > 1 {
		conf = 0.6
	}
	return t, conf, nil
}

// extractJSON strips code fences and surrounding prose from a model reply,
// keeping the outermost JSON object.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return s
}

var _ Fallback = (*LLMFallback)(nil)
