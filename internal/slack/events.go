package slack

import (
	"encoding/json"
	"strings"

	"github.com/slack-go/slack/slackevents"
	"github.com/voxlane/symphony/internal/models"
)

// InboundEvent is the discriminated union of event kinds the bot reacts to.
// Raw platform events are resolved into exactly one of these at the
// boundary; nothing downstream branches on wire shapes.
type InboundEvent interface {
	inboundEvent()
}

// MentionEvent is an at-mention of the bot in a channel.
type MentionEvent struct {
	Request models.TurnRequest
}

// DirectMessageEvent is a message to the bot's DM channel.
type DirectMessageEvent struct {
	Request models.TurnRequest
}

// PingEvent is the "Ping" liveness message, answered outside the
// conversation pipeline.
type PingEvent struct {
	ChannelID string
	MessageTS string
}

// IgnoredEvent is anything the bot deliberately does not react to: its own
// messages, edits, joins and other subtypes.
type IgnoredEvent struct {
	Reason string
}

func (MentionEvent) inboundEvent()       {}
func (DirectMessageEvent) inboundEvent() {}
func (PingEvent) inboundEvent()          {}
func (IgnoredEvent) inboundEvent()       {}

// fileRef is the slice of the event payload we need for attachments; the
// typed event structs do not carry files on every event kind.
type fileRef struct {
	Mimetype           string `json:"mimetype"`
	URLPrivateDownload string `json:"url_private_download"`
}

type eventPayload struct {
	Event struct {
		Files []fileRef `json:"files"`
	} `json:"event"`
}

// imageAttachment returns the download URL and mimetype of the first image
// file attached to the event, if any.
func imageAttachment(rawPayload []byte) (string, string) {
	var payload eventPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return "", ""
	}
	for _, f := range payload.Event.Files {
		if strings.HasPrefix(f.Mimetype, "image/") {
			return f.URLPrivateDownload, f.Mimetype
		}
	}
	return "", ""
}

// Normalize resolves one Events API callback into the inbound event union.
// selfUserID is the bot's own user id, used to strip the mention prefix and
// to drop the bot's own messages.
func Normalize(apiEvent slackevents.EventsAPIEvent, rawPayload []byte, selfUserID string) InboundEvent {
	if apiEvent.Type != slackevents.CallbackEvent {
		return IgnoredEvent{Reason: "not a callback event"}
	}

	switch ev := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.User == "" || ev.User == selfUserID {
			return IgnoredEvent{Reason: "own message"}
		}

		req := models.TurnRequest{
			Thread:    threadOf(ev.Channel, ev.ThreadTimeStamp, ev.TimeStamp),
			MessageTS: ev.TimeStamp,
			UserID:    ev.User,
			Text:      stripMention(ev.Text, selfUserID),
		}
		req.ImageURL, req.ImageMime = imageAttachment(rawPayload)
		return MentionEvent{Request: req}

	case *slackevents.MessageEvent:
		if ev.BotID != "" || ev.User == "" || ev.User == selfUserID {
			return IgnoredEvent{Reason: "own or bot message"}
		}
		if ev.SubType != "" {
			return IgnoredEvent{Reason: "message subtype " + ev.SubType}
		}

		if strings.TrimSpace(ev.Text) == "Ping" {
			return PingEvent{ChannelID: ev.Channel, MessageTS: ev.TimeStamp}
		}

		if ev.ChannelType != "im" {
			// Channel chatter that neither mentions the bot nor pings it.
			return IgnoredEvent{Reason: "channel message without mention"}
		}

		req := models.TurnRequest{
			Thread:    threadOf(ev.Channel, ev.ThreadTimeStamp, ev.TimeStamp),
			MessageTS: ev.TimeStamp,
			UserID:    ev.User,
			Text:      ev.Text,
		}
		req.ImageURL, req.ImageMime = imageAttachment(rawPayload)
		return DirectMessageEvent{Request: req}
	}

	return IgnoredEvent{Reason: "unhandled event type"}
}

// threadOf scopes a message to its thread. A top-level message roots its
// own thread.
func threadOf(channelID, threadTS, ts string) models.ThreadID {
	if threadTS == "" {
		threadTS = ts
	}
	return models.ThreadID{ChannelID: channelID, ThreadTS: threadTS}
}

func stripMention(text, selfUserID string) string {
	text = strings.ReplaceAll(text, "<@"+selfUserID+">", "")
	return strings.TrimSpace(text)
}
