package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/voxlane/symphony/internal/models"
	"go.uber.org/zap"
)

// Message is one entry of the working message list built for a single turn.
// Wire-format conversion happens at the invoker boundary.
type Message struct {
	Role    string
	Content string

	// ImageData carries inline image bytes for a multimodal user message.
	ImageData []byte
	ImageMime string

	// ToolCalls is set on an assistant message requesting capabilities.
	ToolCalls []models.ToolCall

	// ToolCallID and Name pair a tool message with the call it answers.
	ToolCallID string
	Name       string
}

// ToolDefinition declares one capability to the model. Parameters is a JSON
// Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Response is the outcome of one model invocation: either final text or a
// batch of requested tool calls.
type Response struct {
	Content   string
	ToolCalls []models.ToolCall
	Model     string
}

// SettingsReader resolves per-channel model overrides.
type SettingsReader interface {
	GetChannelModel(ctx context.Context, channelID string) (string, error)
}

// Invoker sends message lists to the chat-completion endpoint. It is
// stateless between calls: every invocation carries its full context.
type Invoker struct {
	client       *openai.Client
	settings     SettingsReader
	defaultModel string
	timeout      time.Duration
	logger       *zap.Logger
}

func NewInvoker(client *openai.Client, settings SettingsReader, defaultModel string, timeout time.Duration, logger *zap.Logger) *Invoker {
	return &Invoker{
		client:       client,
		settings:     settings,
		defaultModel: defaultModel,
		timeout:      timeout,
		logger:       logger,
	}
}

// ResolveModel returns the channel's model override, or the process-wide
// default when none is set or the store is unreachable. Resolution failure
// is never fatal to a turn.
func (i *Invoker) ResolveModel(ctx context.Context, channelID string) string {
	model, err := i.settings.GetChannelModel(ctx, channelID)
	if err != nil {
		i.logger.Warn("failed to resolve channel model, using default",
			zap.Error(err),
			zap.String("channel_id", channelID))
		return i.defaultModel
	}
	if model == "" {
		return i.defaultModel
	}
	return model
}

// Invoke runs one chat completion. When tools are declared the model decides
// whether to call them (tool_choice auto); it is never forced.
func (i *Invoker) Invoke(ctx context.Context, model string, msgs []Message, tools []ToolDefinition) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toWire(msgs),
	}
	if len(tools) > 0 {
		req.Tools = toWireTools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := i.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("chat completion: no choices returned")
	}

	message := resp.Choices[0].Message
	out := Response{
		Content: message.Content,
		Model:   resp.Model,
	}
	for _, tc := range message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return out, nil
}

func toWire(msgs []Message) []openai.ChatCompletionMessage {
	wire := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}

		if len(m.ImageData) > 0 {
			// Multimodal payload: the text plus an inline data URL.
			mime := m.ImageMime
			if mime == "" {
				mime = "image/png"
			}
			out.Content = ""
			out.MultiContent = []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: m.Content,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(m.ImageData)),
					},
				},
			}
		}

		for _, tc := range m.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		wire = append(wire, out)
	}
	return wire
}

func toWireTools(tools []ToolDefinition) []openai.Tool {
	wire := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		wire = append(wire, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return wire
}
