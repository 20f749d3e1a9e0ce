package slack

import (
	"bytes"
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Messenger is the chat-platform surface the orchestrator needs: threaded
// posting, reactions, file upload, user lookup and authed file download.
type Messenger interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) (messageID string, err error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	AddReaction(ctx context.Context, channelID, messageTS, name string) error
	RemoveReaction(ctx context.Context, channelID, messageTS, name string) error
	UploadFile(ctx context.Context, channelID, threadTS string, data []byte, filename, title string) error
	UserDisplayName(ctx context.Context, userID string) (string, error)
	FetchFile(ctx context.Context, downloadURL string) ([]byte, error)
}

// Client wraps the Slack Web API as a Messenger.
type Client struct {
	api    *slackapi.Client
	logger *zap.Logger
}

func NewClient(api *slackapi.Client, logger *zap.Logger) *Client {
	return &Client{
		api:    api,
		logger: logger,
	}
}

func (c *Client) PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error) {
	opts := []slackapi.MsgOption{slackapi.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slackapi.MsgOptionTS(threadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("posting message: %w", err)
	}
	return ts, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if _, _, err := c.api.DeleteMessageContext(ctx, channelID, messageID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

func (c *Client) AddReaction(ctx context.Context, channelID, messageTS, name string) error {
	if err := c.api.AddReactionContext(ctx, name, slackapi.NewRefToMessage(channelID, messageTS)); err != nil {
		return fmt.Errorf("adding reaction: %w", err)
	}
	return nil
}

func (c *Client) RemoveReaction(ctx context.Context, channelID, messageTS, name string) error {
	if err := c.api.RemoveReactionContext(ctx, name, slackapi.NewRefToMessage(channelID, messageTS)); err != nil {
		return fmt.Errorf("removing reaction: %w", err)
	}
	return nil
}

func (c *Client) UploadFile(ctx context.Context, channelID, threadTS string, data []byte, filename, title string) error {
	_, err := c.api.UploadFileV2Context(ctx, slackapi.UploadFileV2Parameters{
		Channel:         channelID,
		ThreadTimestamp: threadTS,
		Filename:        filename,
		Title:           title,
		FileSize:        len(data),
		Reader:          bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("uploading file: %w", err)
	}
	return nil
}

func (c *Client) UserDisplayName(ctx context.Context, userID string) (string, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fetching user info: %w", err)
	}

	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName, nil
	}
	if user.Profile.RealName != "" {
		return user.Profile.RealName, nil
	}
	return user.Name, nil
}

func (c *Client) FetchFile(ctx context.Context, downloadURL string) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.api.GetFileContext(ctx, downloadURL, &buf); err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	return buf.Bytes(), nil
}
