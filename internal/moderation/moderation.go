package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/voxlane/symphony/internal/models"
	"go.uber.org/zap"
)

// Replies delivered when a turn is blocked. The self-harm reply takes
// precedence over the generic one whenever a self-harm category is present.
const (
	SelfHarmReply = "I'm really sorry you're going through this. I'm not able to help here, but you deserve support from a real person — please consider reaching out to someone you trust or a local crisis line."
	PolicyReply   = "I can't help with that message, sorry. Feel free to ask me something else."
)

// Gate classifies one user utterance before it enters the conversation
// pipeline. Unavailability of the endpoint is reported as an error so the
// caller can fail open; the gate itself never blocks on infrastructure
// trouble.
type Gate struct {
	client  *openai.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewGate(client *openai.Client, timeout time.Duration, logger *zap.Logger) *Gate {
	return &Gate{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

func (g *Gate) Classify(ctx context.Context, text string) (models.ModerationVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
	})
	if err != nil {
		return models.ModerationVerdict{}, fmt.Errorf("moderation request: %w", err)
	}
	if len(resp.Results) == 0 {
		return models.ModerationVerdict{}, errors.New("moderation request: empty result")
	}

	result := resp.Results[0]
	verdict := models.ModerationVerdict{
		Flagged:    result.Flagged,
		Categories: flaggedCategories(result.Categories),
	}

	if verdict.Flagged {
		g.logger.Info("utterance flagged by moderation",
			zap.Strings("categories", verdict.Categories))
	}

	return verdict, nil
}

func flaggedCategories(c openai.ResultCategories) []string {
	var tags []string
	for tag, hit := range map[string]bool{
		"hate":                   c.Hate,
		"hate/threatening":       c.HateThreatening,
		"harassment":             c.Harassment,
		"harassment/threatening": c.HarassmentThreatening,
		"self-harm":              c.SelfHarm,
		"self-harm/intent":       c.SelfHarmIntent,
		"self-harm/instructions": c.SelfHarmInstructions,
		"sexual":                 c.Sexual,
		"sexual/minors":          c.SexualMinors,
		"violence":               c.Violence,
		"violence/graphic":       c.ViolenceGraphic,
	} {
		if hit {
			tags = append(tags, tag)
		}
	}
	return tags
}
