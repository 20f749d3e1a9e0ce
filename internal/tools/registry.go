package tools

import (
	"context"
	"encoding/json"

	"github.com/voxlane/symphony/internal/llm"
	"github.com/voxlane/symphony/internal/models"
	"go.uber.org/zap"
)

// Capability names as declared to the model.
const (
	NameWebSearch     = "web_search"
	NameDeepResearch  = "deep_research"
	NameURLScrape     = "url_scrape"
	NameImageGenerate = "image_generate"
)

// Fixed failure texts. No provider failure crosses the registry boundary as
// an error: every adapter degrades to one of these so the model can react
// conversationally.
const (
	searchFailedText   = "Unable to search."
	researchFailedText = "Unable to complete the research request."
	scrapeFailedText   = "Unable to fetch that page."
	generateFailedText = "Failed to generate the image."
	uploadFailedText   = "The image was generated but could not be delivered to the channel."
	generatedText      = "The image was generated and shared in the conversation thread."
	badArgumentsText   = "The tool call arguments could not be parsed."
	unsupportedText    = "Unsupported capability."
)

// Typed argument records, one per capability.
type webSearchArgs struct {
	Query string `json:"query"`
}

type deepResearchArgs struct {
	Query string `json:"query"`
}

type urlScrapeArgs struct {
	URL string `json:"url"`
}

type imageGenerateArgs struct {
	Prompt string `json:"prompt"`
}

type searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

type researcher interface {
	Research(ctx context.Context, query string) (string, error)
}

type scraper interface {
	Scrape(ctx context.Context, pageURL string) (string, error)
}

type imageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Uploader delivers a generated artifact into the originating thread.
type Uploader interface {
	UploadFile(ctx context.Context, channelID, threadTS string, data []byte, filename, title string) error
}

// Registry maps tool names requested by the model onto provider calls.
type Registry struct {
	search   searcher
	research researcher
	scrape   scraper
	image    imageGenerator
	uploader Uploader
	logger   *zap.Logger
}

func NewRegistry(search searcher, research researcher, scrape scraper, image imageGenerator, uploader Uploader, logger *zap.Logger) *Registry {
	return &Registry{
		search:   search,
		research: research,
		scrape:   scrape,
		image:    image,
		uploader: uploader,
		logger:   logger,
	}
}

// Declarations returns the JSON Schema tool declarations for every
// registered capability.
func (r *Registry) Declarations() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        NameWebSearch,
			Description: "Search the world wide web for information.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        NameDeepResearch,
			Description: "Run an in-depth research task on a topic. Slow; use only when a plain search is not enough. Keep the final summary concise.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The research question.",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        NameURLScrape,
			Description: "Fetch a web page and return its content as markdown.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "The URL to fetch.",
					},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        NameImageGenerate,
			Description: "Generate an image from a text prompt and share it in the conversation.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "The image description.",
					},
				},
				"required": []string{"prompt"},
			},
		},
	}
}

// StatusText returns the transient status line posted while a capability
// runs.
func StatusText(name string) string {
	switch name {
	case NameWebSearch:
		return ":mag: Searching the web..."
	case NameDeepResearch:
		return ":books: Researching, this can take a while..."
	case NameURLScrape:
		return ":globe_with_meridians: Reading the page..."
	case NameImageGenerate:
		return ":art: Generating an image..."
	default:
		return ":hourglass: Working on it..."
	}
}

// Dispatch runs one tool call against its provider and always returns a
// textual result paired with the originating call id. Unknown names yield
// an "unsupported capability" result, not an error.
func (r *Registry) Dispatch(ctx context.Context, thread models.ThreadID, call models.ToolCall) models.ToolResult {
	result := models.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	switch call.Name {
	case NameWebSearch:
		result.Content = r.dispatchWebSearch(ctx, call.Arguments)
	case NameDeepResearch:
		result.Content = r.dispatchDeepResearch(ctx, call.Arguments)
	case NameURLScrape:
		result.Content = r.dispatchURLScrape(ctx, call.Arguments)
	case NameImageGenerate:
		result.Content = r.dispatchImageGenerate(ctx, thread, call.Arguments)
	default:
		r.logger.Warn("model requested unknown tool", zap.String("tool", call.Name))
		result.Content = unsupportedText
	}

	return result
}

func (r *Registry) dispatchWebSearch(ctx context.Context, arguments string) string {
	var args webSearchArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		r.logger.Warn("bad web_search arguments", zap.Error(err))
		return badArgumentsText
	}

	payload, err := r.search.Search(ctx, args.Query)
	if err != nil {
		r.logger.Error("web search failed",
			zap.Error(err),
			zap.String("query", args.Query))
		return searchFailedText
	}
	return payload
}

func (r *Registry) dispatchDeepResearch(ctx context.Context, arguments string) string {
	var args deepResearchArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		r.logger.Warn("bad deep_research arguments", zap.Error(err))
		return badArgumentsText
	}

	report, err := r.research.Research(ctx, args.Query)
	if err != nil {
		r.logger.Error("deep research failed",
			zap.Error(err),
			zap.String("query", args.Query))
		return researchFailedText
	}
	return report
}

func (r *Registry) dispatchURLScrape(ctx context.Context, arguments string) string {
	var args urlScrapeArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		r.logger.Warn("bad url_scrape arguments", zap.Error(err))
		return badArgumentsText
	}

	content, err := r.scrape.Scrape(ctx, args.URL)
	if err != nil {
		r.logger.Error("url scrape failed",
			zap.Error(err),
			zap.String("url", args.URL))
		return scrapeFailedText
	}
	return content
}

// dispatchImageGenerate distinguishes generation failure from delivery
// failure: an image that was produced but not uploaded is acknowledged as
// such so the model can apologize accurately.
func (r *Registry) dispatchImageGenerate(ctx context.Context, thread models.ThreadID, arguments string) string {
	var args imageGenerateArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		r.logger.Warn("bad image_generate arguments", zap.Error(err))
		return badArgumentsText
	}

	data, err := r.image.Generate(ctx, args.Prompt)
	if err != nil {
		r.logger.Error("image generation failed",
			zap.Error(err),
			zap.String("prompt", args.Prompt))
		return generateFailedText
	}

	title := args.Prompt
	if len(title) > 80 {
		title = title[:80]
	}
	if err := r.uploader.UploadFile(ctx, thread.ChannelID, thread.ThreadTS, data, "generated.png", title); err != nil {
		r.logger.Error("image upload failed",
			zap.Error(err),
			zap.String("channel_id", thread.ChannelID))
		return uploadFailedText
	}

	return generatedText
}
