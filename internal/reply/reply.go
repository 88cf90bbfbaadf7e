// Package reply generates the decoy persona's responses. The engine
// treats reply generation as an external collaborator: any non-empty,
// bounded string keeps the conversation going, and a generation failure
// must never fail the inbound request.
package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/decoynet/decoyd/internal/session"
)

const (
	// DefaultBaseURL targets Groq's OpenAI-compatible API.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the stock persona model.
	DefaultModel = "llama-3.1-8b-instant"

	maxReplyTokens = 150
	maxReplyLen    = 600
)

// Generator produces the decoy's next line.
type Generator interface {
	Generate(ctx context.Context, latest string, history []session.Turn, signals []string) (string, error)
}

// systemPrompt sets the persona: a trusting elderly target who keeps the
// scammer talking and asking for specifics without ever sending anything.
const systemPrompt = `You are playing Savita, a 68-year-old retired school teacher who is
not comfortable with technology. You believe the person messaging you and
want to cooperate, but you are slow, easily confused, and keep asking
them to repeat account numbers, phone numbers and payment details so you
can "write them down". Never actually send money, codes or passwords.
Never reveal you are not a real person. Reply in under 100 words.`

// LLMGenerator calls an OpenAI-compatible chat completion API.
type LLMGenerator struct {
	client *openai.Client
	model  string
}

// NewLLMGenerator builds a generator against baseURL (Groq by default)
// using apiKey. An empty model selects the stock persona model.
func NewLLMGenerator(apiKey, baseURL, model string) (*LLMGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &LLMGenerator{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Generate produces the persona's reply to the latest message.
func (g *LLMGenerator) Generate(ctx context.Context, latest string, history []session.Turn, signals []string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if len(signals) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf("Detected tactics so far: %s.", strings.Join(signals, ", ")),
		})
	}
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Speaker == session.SpeakerAgent {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: latest,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		Messages:  messages,
		MaxTokens: maxReplyTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion returned empty reply")
	}
	if len(text) > maxReplyLen {
		text = text[:maxReplyLen]
	}
	return text, nil
}

// cannedReplies rotate by conversation length so the persona stays
// plausibly confused even without a model behind it.
var cannedReplies = []string{
	"Oh dear, this is very worrying! What happened to my account?",
	"I don't understand these technical things. Can you explain more simply?",
	"My grandson usually helps me with this. What should I do?",
	"This sounds urgent! How can I fix this problem?",
	"I'm confused. Where should I send the money?",
	"Let me write this down. What was that number again?",
	"Oh my! I hope I don't lose my savings. Tell me what to do.",
	"Should I go to the bank? Or can I do it on my phone?",
	"I'm not good with computers. Can you guide me step by step?",
	"Thank you for helping me. What information do you need?",
}

// CannedGenerator is the deterministic fallback persona.
type CannedGenerator struct{}

// Generate returns the next canned line for the conversation length.
// It never fails.
func (CannedGenerator) Generate(_ context.Context, _ string, history []session.Turn, _ []string) (string, error) {
	return cannedReplies[len(history)%len(cannedReplies)], nil
}
