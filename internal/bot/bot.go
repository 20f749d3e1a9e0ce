package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/voxlane/symphony/internal/models"
	"github.com/voxlane/symphony/internal/slack"
	"github.com/voxlane/symphony/internal/storage"
	"go.uber.org/zap"
)

// Bot owns the Socket Mode event loop. Raw events are normalized once at
// this boundary; conversation turns are handed to the orchestrator through
// the per-thread dispatcher.
type Bot struct {
	sock         *socketmode.Client
	messenger    slack.Messenger
	store        storage.Storage
	orchestrator *Orchestrator
	dispatcher   *dispatcher
	logger       *zap.Logger
	selfUserID   string
	pingReaction string
}

func New(
	sock *socketmode.Client,
	messenger slack.Messenger,
	store storage.Storage,
	orchestrator *Orchestrator,
	selfUserID string,
	pingReaction string,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		sock:         sock,
		messenger:    messenger,
		store:        store,
		orchestrator: orchestrator,
		dispatcher:   newDispatcher(),
		logger:       logger,
		selfUserID:   selfUserID,
		pingReaction: pingReaction,
	}
}

// Run pumps Socket Mode events until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-b.sock.Events:
				if !ok {
					return
				}
				b.handleSocketEvent(ctx, evt)
			}
		}
	}()

	return b.sock.RunContext(ctx)
}

func (b *Bot) handleSocketEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.sock.Ack(*evt.Request)

		var raw []byte
		if evt.Request != nil {
			raw = evt.Request.Payload
		}
		b.HandleInbound(ctx, slack.Normalize(apiEvent, raw, b.selfUserID))

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slackapi.SlashCommand)
		if !ok {
			return
		}
		b.sock.Ack(*evt.Request)
		b.handleSlashCommand(ctx, cmd.ChannelID, cmd.Text)

	case socketmode.EventTypeConnectionError:
		b.logger.Warn("socket mode connection error")
	}
}

// HandleInbound reacts to one normalized event.
func (b *Bot) HandleInbound(ctx context.Context, event slack.InboundEvent) {
	switch ev := event.(type) {
	case slack.PingEvent:
		b.handlePing(ctx, ev)

	case slack.MentionEvent:
		b.enqueueTurn(ctx, ev.Request)

	case slack.DirectMessageEvent:
		b.enqueueTurn(ctx, ev.Request)

	case slack.IgnoredEvent:
		b.logger.Debug("ignoring event", zap.String("reason", ev.Reason))
	}
}

// handlePing is the liveness fast path: "Ping" gets "Pong!" and a reaction,
// bypassing moderation, memory and the model entirely.
func (b *Bot) handlePing(ctx context.Context, ev slack.PingEvent) {
	if _, err := b.messenger.PostMessage(ctx, ev.ChannelID, "", "Pong!"); err != nil {
		b.logger.Error("failed to answer ping", zap.Error(err))
		return
	}
	if err := b.messenger.AddReaction(ctx, ev.ChannelID, ev.MessageTS, b.pingReaction); err != nil {
		b.logger.Warn("unable to add ping reaction", zap.Error(err))
	}
}

func (b *Bot) enqueueTurn(ctx context.Context, req models.TurnRequest) {
	req.RequestID = uuid.New().String()

	b.logger.Info("turn received",
		zap.String("request_id", req.RequestID),
		zap.String("channel_id", req.Thread.ChannelID),
		zap.String("thread_ts", req.Thread.ThreadTS),
		zap.String("user_id", req.UserID))

	b.dispatcher.Enqueue(req.Thread, func() {
		b.orchestrator.ProcessTurn(ctx, &req)
	})
}

// handleSlashCommand serves the administrative model override:
// "/symphony model <id>" sets it, "/symphony model" reports it.
func (b *Bot) handleSlashCommand(ctx context.Context, channelID, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] != "model" {
		b.reply(ctx, channelID, "Usage: /symphony model [model-id]")
		return
	}

	if len(fields) == 1 {
		model, err := b.store.GetChannelModel(ctx, channelID)
		if err != nil {
			b.logger.Error("failed to read channel model", zap.Error(err))
			b.reply(ctx, channelID, "Couldn't read the channel settings.")
			return
		}
		if model == "" {
			b.reply(ctx, channelID, "This channel uses the default model.")
			return
		}
		b.reply(ctx, channelID, fmt.Sprintf("This channel uses `%s`.", model))
		return
	}

	model := fields[1]
	if err := b.store.SetChannelModel(ctx, channelID, model); err != nil {
		b.logger.Error("failed to set channel model",
			zap.Error(err),
			zap.String("model", model))
		b.reply(ctx, channelID, "Couldn't save the channel settings.")
		return
	}
	b.reply(ctx, channelID, fmt.Sprintf("This channel now uses `%s`.", model))
}

func (b *Bot) reply(ctx context.Context, channelID, text string) {
	if _, err := b.messenger.PostMessage(ctx, channelID, "", text); err != nil {
		b.logger.Error("failed to send message", zap.Error(err), zap.String("channel_id", channelID))
	}
}

// Wait blocks until in-flight turns finish; used on shutdown.
func (b *Bot) Wait() {
	b.dispatcher.Wait()
}
