// Package recommend is the boundary to the external text-generation service
// that answers menu questions.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/khanpan/pkg/models"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// FallbackText is returned to the user whenever the completion fails.
const FallbackText = "Server error. Please try again."

const defaultUserText = "Hi"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completer is the part of an llms.Model the gateway needs.
type Completer interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type MenuSource interface {
	Menu(ctx context.Context) ([]models.MenuItem, error)
}

// Observer is notified of each completion attempt.
type Observer interface {
	ObserveCompletion(outcome string, took time.Duration)
}

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type Gateway struct {
	llm      Completer
	menu     MenuSource
	opts     Options
	logger   *zap.Logger
	observer Observer
}

func NewGateway(llm Completer, menu MenuSource, opts Options, logger *zap.Logger) *Gateway {
	return &Gateway{llm: llm, menu: menu, opts: opts, logger: logger}
}

func (g *Gateway) SetObserver(o Observer) {
	g.observer = o
}

// Recommend sends userText with the prior conversation to the model and
// returns its reply. On any failure it returns FallbackText together with
// the error; there is no retry.
func (g *Gateway) Recommend(ctx context.Context, userText string, history []Message) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		userText = defaultUserText
	}

	start := time.Now()
	reply, err := g.complete(ctx, userText, history)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if g.observer != nil {
		g.observer.ObserveCompletion(outcome, time.Since(start))
	}
	if err != nil {
		g.logger.Error("Recommendation failed", zap.String("user_text", userText), zap.Error(err))
		return FallbackText, err
	}
	return reply, nil
}

func (g *Gateway) complete(ctx context.Context, userText string, history []Message) (string, error) {
	menu, err := g.menu.Menu(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load menu: %w", err)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, BuildSystemPrompt(menu)),
	}
	for _, msg := range TrimHistory(history) {
		msgType := llms.ChatMessageTypeHuman
		if msg.Role == RoleAssistant {
			msgType = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(msgType, msg.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, userText))

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	var callOpts []llms.CallOption
	if g.opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(g.opts.Model))
	}
	if g.opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(g.opts.MaxTokens))
	}
	callOpts = append(callOpts, llms.WithTemperature(g.opts.Temperature))

	resp, err := g.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("empty response from model")
	}
	return resp.Choices[0].Content, nil
}

// TrimHistory drops leading turns until the first user turn; the model
// requires the conversation to open with the user.
func TrimHistory(history []Message) []Message {
	for i, msg := range history {
		if msg.Role == RoleUser {
			return history[i:]
		}
	}
	return nil
}
