package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
)

const (
	StatusSuccess  = "success"
	StatusTextOnly = "text_only"

	ttsModel        = "eleven_multilingual_v2"
	maxNarrationLen = 400
)

var (
	// ErrNotConfigured is returned when no narration API key is set.
	ErrNotConfigured = errors.New("synthesizer not configured")
	ErrEmptyPrompt   = errors.New("key words and place are both empty")
	ErrBadArtifact   = errors.New("invalid audio artifact name")
)

type Options struct {
	TextEndpoint string
	TextAPIKey   string
	TextModel    string
	TTSEndpoint  string // voice id is appended as the last path segment
	TTSAPIKey    string
	Voice        string
	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
	OutputDir    string
}

// Client turns a dream scenario into a spoken cue: a short narration from a chat
// completion API, then text-to-speech into an mp3 under OutputDir.
type Client struct {
	text *resty.Client
	tts  *resty.Client
	opts Options
	log  *logger.Logger
}

func New(opts Options, log *logger.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "generated_audio"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		text: newRestClient(opts).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetAuthToken(opts.TextAPIKey),
		tts: newRestClient(opts).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "audio/mpeg").
			SetHeader("xi-api-key", opts.TTSAPIKey),
		opts: opts,
		log:  log.With("component", "audio"),
	}
}

func newRestClient(opts Options) *resty.Client {
	return resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(5 * opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

const narrationPrompt = "You write short, calm, second-person narrations that gently guide a sleeping " +
	"listener into a dream. Two or three sentences, present tense, no greetings."

func userPrompt(keyWords, place string) string {
	var b strings.Builder
	b.WriteString("Guide the dreamer")
	if place != "" {
		b.WriteString(" to ")
		b.WriteString(place)
	}
	if keyWords != "" {
		b.WriteString(". Weave in: ")
		b.WriteString(keyWords)
	}
	b.WriteString(".")
	return b.String()
}

// Synthesize implements the scenario cue collaborator. Without a TTS key the result is
// text_only and no audio is written.
func (c *Client) Synthesize(ctx context.Context, keyWords, place string) (models.SynthesisResult, error) {
	keyWords, place = strings.TrimSpace(keyWords), strings.TrimSpace(place)
	if c.opts.TextAPIKey == "" {
		return models.SynthesisResult{}, ErrNotConfigured
	}
	if keyWords == "" && place == "" {
		return models.SynthesisResult{}, ErrEmptyPrompt
	}

	narration, err := c.narrate(ctx, keyWords, place)
	if err != nil {
		return models.SynthesisResult{}, err
	}
	if c.opts.TTSAPIKey == "" {
		c.log.Infow("synthesis_text_only", "place", place)
		return models.SynthesisResult{Status: StatusTextOnly, Narration: narration}, nil
	}

	name, err := c.speak(ctx, narration)
	if err != nil {
		return models.SynthesisResult{}, err
	}
	c.log.Infow("synthesis_done", "place", place, "artifact", name)
	return models.SynthesisResult{Status: StatusSuccess, Narration: narration, AudioRefs: []string{name}}, nil
}

func (c *Client) narrate(ctx context.Context, keyWords, place string) (string, error) {
	var out chatResponse
	resp, err := c.text.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.opts.TextModel,
			Messages: []chatMessage{
				{Role: "system", Content: narrationPrompt},
				{Role: "user", Content: userPrompt(keyWords, place)},
			},
			MaxTokens: 200,
		}).
		SetResult(&out).
		Post(c.opts.TextEndpoint)
	if err != nil {
		return "", fmt.Errorf("narration request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("narration request: status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", errors.New("narration request: empty completion")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("narration request: empty completion")
	}
	if r := []rune(text); len(r) > maxNarrationLen {
		text = string(r[:maxNarrationLen])
	}
	return text, nil
}

// speak sends narration to the TTS API and stores the mp3. Returns the artifact name.
func (c *Client) speak(ctx context.Context, narration string) (string, error) {
	resp, err := c.tts.R().
		SetContext(ctx).
		SetBody(ttsRequest{Text: narration, ModelID: ttsModel}).
		Post(strings.TrimRight(c.opts.TTSEndpoint, "/") + "/" + c.opts.Voice)
	if err != nil {
		return "", fmt.Errorf("tts request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("tts request: status %d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return "", errors.New("tts request: empty audio")
	}

	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	name := uuid.NewString() + ".mp3"
	if err := os.WriteFile(filepath.Join(c.opts.OutputDir, name), body, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return name, nil
}

// ArtifactPath resolves an artifact name inside dir. Names carrying path elements are rejected.
func ArtifactPath(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".mp3" {
		return "", ErrBadArtifact
	}
	return filepath.Join(dir, name), nil
}
