package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/voxlane/symphony/internal/llm"
	"github.com/voxlane/symphony/internal/models"
	"github.com/voxlane/symphony/internal/moderation"
	"github.com/voxlane/symphony/internal/slack"
	"github.com/voxlane/symphony/internal/storage"
	"github.com/voxlane/symphony/internal/tools"
	"go.uber.org/zap"
)

const defaultUserName = "User"

// Moderator classifies one utterance. An error means the endpoint is
// unavailable, which the orchestrator treats as allow (fail-open). That is a
// deliberate availability-over-safety tradeoff at the infrastructure
// boundary; do not tighten it silently.
type Moderator interface {
	Classify(ctx context.Context, text string) (models.ModerationVerdict, error)
}

// ModelInvoker sends one message list to the model and resolves which model
// a channel uses.
type ModelInvoker interface {
	ResolveModel(ctx context.Context, channelID string) string
	Invoke(ctx context.Context, model string, msgs []llm.Message, tools []llm.ToolDefinition) (llm.Response, error)
}

// ToolDispatcher runs one requested tool call and always yields a textual
// result.
type ToolDispatcher interface {
	Declarations() []llm.ToolDefinition
	Dispatch(ctx context.Context, thread models.ThreadID, call models.ToolCall) models.ToolResult
}

// Orchestrator turns one inbound event into zero-or-more capability calls
// and exactly one delivered reply, persisting both sides of the exchange.
type Orchestrator struct {
	messenger      slack.Messenger
	store          storage.Storage
	moderator      Moderator
	invoker        ModelInvoker
	tools          ToolDispatcher
	logger         *zap.Logger
	memoryWindow   int
	typingReaction string
}

func NewOrchestrator(
	messenger slack.Messenger,
	store storage.Storage,
	moderator Moderator,
	invoker ModelInvoker,
	dispatcher ToolDispatcher,
	memoryWindow int,
	typingReaction string,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		messenger:      messenger,
		store:          store,
		moderator:      moderator,
		invoker:        invoker,
		tools:          dispatcher,
		logger:         logger,
		memoryWindow:   memoryWindow,
		typingReaction: typingReaction,
	}
}

// ProcessTurn runs the full turn protocol for one normalized request. It
// never returns an error: every failure mode ends in a delivered reply or a
// logged best-effort miss.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req *models.TurnRequest) {
	start := time.Now()
	log := o.logger.With(
		zap.String("request_id", req.RequestID),
		zap.String("channel_id", req.Thread.ChannelID),
		zap.String("thread_ts", req.Thread.ThreadTS))

	// Typing indicator: acquired here, released on every exit path.
	release := o.acquireTyping(ctx, req, log)
	defer release()

	// Moderation gate.
	verdict, err := o.moderator.Classify(ctx, req.Text)
	if err != nil {
		// Fail open: an unreachable moderator never blocks the turn.
		log.Warn("moderation unavailable, proceeding unmoderated", zap.Error(err))
	} else if verdict.Flagged {
		reply := moderation.PolicyReply
		if verdict.SelfHarm() {
			reply = moderation.SelfHarmReply
		}
		o.deliver(ctx, req, reply, log)
		return
	}

	userName := o.displayName(ctx, req.UserID, log)

	// Load context: persist the inbound turn, then read the window back.
	userTurn := &models.Turn{
		Thread:   req.Thread,
		Role:     models.RoleUser,
		UserName: userName,
		Content:  req.Text,
	}
	persisted := true
	if err := o.store.AppendTurn(ctx, userTurn); err != nil {
		persisted = false
		log.Error("failed to persist user turn", zap.Error(err))
	}

	history, err := o.store.RecentTurns(ctx, req.Thread, o.memoryWindow)
	if err != nil {
		log.Error("failed to read conversation history, proceeding without it", zap.Error(err))
		history = nil
	}

	msgs := o.buildContext(ctx, req, userName, history, persisted, log)
	model := o.invoker.ResolveModel(ctx, req.Thread.ChannelID)

	// First model pass, tools on the table.
	resp, err := o.invoker.Invoke(ctx, model, msgs, o.tools.Declarations())
	if err != nil {
		log.Error("model invocation failed", zap.Error(err))
		o.deliver(ctx, req, fmt.Sprintf("I couldn't reach the language model: %v", err), log)
		return
	}

	final := resp.Content
	toolCalls := len(resp.ToolCalls)
	if len(resp.ToolCalls) > 0 {
		msgs = append(msgs, llm.Message{
			Role:      models.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		// Resolve every call in the order the model emitted them; each one
		// gets exactly one result, success or not.
		for _, call := range resp.ToolCalls {
			log.Info("dispatching tool call",
				zap.String("tool", call.Name),
				zap.String("call_id", call.ID))

			removeStatus := o.postStatus(ctx, req.Thread, call.Name, log)
			result := o.tools.Dispatch(ctx, req.Thread, call)
			removeStatus()

			msgs = append(msgs, llm.Message{
				Role:       models.RoleTool,
				Content:    result.Content,
				ToolCallID: result.ToolCallID,
				Name:       result.Name,
			})
		}

		// Synthesis pass: tools are not re-offered, the response is final.
		resp, err = o.invoker.Invoke(ctx, model, msgs, nil)
		if err != nil {
			log.Error("model synthesis failed", zap.Error(err))
			o.deliver(ctx, req, fmt.Sprintf("I couldn't reach the language model: %v", err), log)
			return
		}
		final = resp.Content
	}

	// Persist the reply, best effort.
	assistantTurn := &models.Turn{
		Thread:  req.Thread,
		Role:    models.RoleAssistant,
		Content: final,
	}
	if err := o.store.AppendTurn(ctx, assistantTurn); err != nil {
		log.Error("failed to persist assistant turn", zap.Error(err))
	}

	o.deliver(ctx, req, fmt.Sprintf("%s\n\n_%s · %.1fs_", final, model, time.Since(start).Seconds()), log)

	log.Info("turn completed",
		zap.String("model", model),
		zap.Int("tool_calls", toolCalls),
		zap.Duration("latency", time.Since(start)))
}

// buildContext assembles the working message list: a freshly synthesized
// system turn, the memory window, and the inbound image if one is attached.
func (o *Orchestrator) buildContext(ctx context.Context, req *models.TurnRequest, userName string, history []models.Turn, persisted bool, log *zap.Logger) []llm.Message {
	msgs := []llm.Message{{
		Role:    models.RoleSystem,
		Content: systemPrompt(userName, time.Now()),
	}}

	for _, turn := range history {
		msgs = append(msgs, llm.Message{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	// If the insert failed the window read cannot contain the current
	// utterance, so carry it explicitly.
	if !persisted || len(history) == 0 {
		msgs = append(msgs, llm.Message{
			Role:    models.RoleUser,
			Content: req.Text,
		})
	}

	if req.ImageURL != "" {
		data, err := o.messenger.FetchFile(ctx, req.ImageURL)
		if err != nil {
			// Degrade to text-only.
			log.Warn("failed to fetch attached image", zap.Error(err))
		} else {
			last := len(msgs) - 1
			msgs[last].ImageData = data
			msgs[last].ImageMime = req.ImageMime
		}
	}

	return msgs
}

func systemPrompt(userName string, now time.Time) string {
	return fmt.Sprintf(`The assistant is named Symphony. You are a helpful, harmless assistant. You are currently talking to %s. The current time is %s.

You can call tools: web_search for quick lookups, url_scrape to read a specific page, deep_research for in-depth questions (slow, keep its findings brief in your reply), and image_generate to create and share an image. Only call a tool when the conversation needs it.`,
		userName, now.Format(time.RFC1123))
}

func (o *Orchestrator) displayName(ctx context.Context, userID string, log *zap.Logger) string {
	name, err := o.messenger.UserDisplayName(ctx, userID)
	if err != nil {
		log.Warn("failed to fetch user info", zap.Error(err), zap.String("user_id", userID))
		return defaultUserName
	}
	if name == "" {
		return defaultUserName
	}
	return name
}

// acquireTyping adds the typing reaction to the triggering message and
// returns the matching release. Both sides are best effort.
func (o *Orchestrator) acquireTyping(ctx context.Context, req *models.TurnRequest, log *zap.Logger) func() {
	if err := o.messenger.AddReaction(ctx, req.Thread.ChannelID, req.MessageTS, o.typingReaction); err != nil {
		log.Warn("unable to add typing reaction", zap.Error(err))
	}
	return func() {
		if err := o.messenger.RemoveReaction(ctx, req.Thread.ChannelID, req.MessageTS, o.typingReaction); err != nil {
			log.Warn("unable to remove typing reaction", zap.Error(err))
		}
	}
}

// postStatus posts the transient "working on it" line for one tool call and
// returns the cleanup that removes it once the provider resolves.
func (o *Orchestrator) postStatus(ctx context.Context, thread models.ThreadID, toolName string, log *zap.Logger) func() {
	messageID, err := o.messenger.PostMessage(ctx, thread.ChannelID, thread.ThreadTS, tools.StatusText(toolName))
	if err != nil {
		log.Warn("unable to post tool status", zap.Error(err), zap.String("tool", toolName))
		return func() {}
	}
	return func() {
		if err := o.messenger.DeleteMessage(ctx, thread.ChannelID, messageID); err != nil {
			log.Warn("unable to remove tool status", zap.Error(err), zap.String("tool", toolName))
		}
	}
}

// deliver posts the reply into the originating thread. A failed delivery is
// logged; there is nothing further to fall back to.
func (o *Orchestrator) deliver(ctx context.Context, req *models.TurnRequest, text string, log *zap.Logger) {
	if _, err := o.messenger.PostMessage(ctx, req.Thread.ChannelID, req.Thread.ThreadTS, text); err != nil {
		log.Error("failed to deliver reply", zap.Error(err))
	}
}
