package tools

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ImageClient generates images through the images endpoint and returns the
// raw bytes. Delivery of the artifact is the registry's concern, not this
// client's.
type ImageClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewImageClient(client *openai.Client, model string, timeout time.Duration, logger *zap.Logger) *ImageClient {
	return &ImageClient{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (c *ImageClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	c.logger.Info("generating image", zap.String("prompt", prompt))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.model,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("image generation: empty response")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding image payload: %w", err)
	}

	return data, nil
}
