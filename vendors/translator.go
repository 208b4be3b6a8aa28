package vendors

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/xiaoyuanzhu-com/bilisub/config"
	"github.com/xiaoyuanzhu-com/bilisub/log"
)

// OpenAITranslator is the translation collaborator backed by an
// OpenAI-compatible chat endpoint. It is batch-capable and caches per
// instance; the pipeline creates one translator per job so nothing leaks
// between jobs.
type OpenAITranslator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	cache   map[string]string
}

// NewOpenAITranslator builds a translator from process configuration.
// Returns nil when no API key is configured; callers treat nil as
// translation-disabled.
func NewOpenAITranslator() *OpenAITranslator {
	cfg := config.Get()
	if cfg.OpenAIAPIKey == "" {
		log.Debug().Msg("OPENAI_API_KEY not configured, translation disabled")
		return nil
	}

	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" && cfg.OpenAIBaseURL != "https://api.openai.com/v1" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}

	return &OpenAITranslator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.OpenAIModel,
		timeout: cfg.TranslateTimeout,
		cache:   make(map[string]string),
	}
}

const translateSystemPrompt = "You are a subtitle translator. Translate each numbered line from %s to %s. " +
	"Reply with the same numbered lines, one translation per line, nothing else."

// Translate translates a batch of subtitle lines. Cached lines are served
// without a network call; the rest go out in a single numbered-list prompt.
func (t *OpenAITranslator) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	out := make([]string, len(texts))

	var pending []int
	for i, text := range texts {
		if cached, ok := t.cache[cacheKey(text, targetLang)]; ok {
			out[i] = cached
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	var prompt strings.Builder
	for n, i := range pending {
		prompt.WriteString(strconv.Itoa(n + 1))
		prompt.WriteString(". ")
		prompt.WriteString(strings.ReplaceAll(texts[i], "\n", " "))
		prompt.WriteString("\n")
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(translateSystemPrompt, languageName(sourceLang), languageName(targetLang)),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt.String(),
			},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("translate: empty response")
	}

	lines := parseNumberedLines(resp.Choices[0].Message.Content, len(pending))
	for n, i := range pending {
		out[i] = lines[n]
		t.cache[cacheKey(texts[i], targetLang)] = lines[n]
	}

	log.Debug().
		Int("requested", len(pending)).
		Int("cached", len(texts)-len(pending)).
		Str("target", targetLang).
		Msg("translated subtitle lines")
	return out, nil
}

func cacheKey(text, targetLang string) string {
	return targetLang + "\x00" + text
}

// parseNumberedLines reads "N. text" lines back out of the model response,
// tolerating missing numbers by position.
func parseNumberedLines(content string, want int) []string {
	out := make([]string, want)
	pos := 0
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if num, rest, ok := strings.Cut(line, ". "); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(num, ".")); err == nil && n >= 1 && n <= want {
				out[n-1] = rest
				pos = n
				continue
			}
		}
		if pos < want {
			out[pos] = line
			pos++
		}
	}
	return out
}

// languageName spells common tags out for the prompt.
func languageName(tag string) string {
	switch strings.ToLower(tag) {
	case "zh", "zh-hans", "chs", "chi", "zho":
		return "Simplified Chinese"
	case "zh-hant", "cht":
		return "Traditional Chinese"
	case "en", "eng":
		return "English"
	case "ja", "jpn":
		return "Japanese"
	case "ko", "kor":
		return "Korean"
	}
	return tag
}
