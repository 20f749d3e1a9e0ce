package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlane/symphony/internal/models"
	"go.uber.org/zap"
)

var testThread = models.ThreadID{ChannelID: "C1", ThreadTS: "100.1"}

type stubSearcher struct {
	payload string
	err     error
}

func (s stubSearcher) Search(ctx context.Context, query string) (string, error) {
	return s.payload, s.err
}

type stubResearcher struct {
	report string
	err    error
}

func (s stubResearcher) Research(ctx context.Context, query string) (string, error) {
	return s.report, s.err
}

type stubScraper struct {
	content string
	err     error
}

func (s stubScraper) Scrape(ctx context.Context, pageURL string) (string, error) {
	return s.content, s.err
}

type stubGenerator struct {
	data []byte
	err  error
}

func (s stubGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return s.data, s.err
}

type spyUploader struct {
	calls int
	err   error
}

func (u *spyUploader) UploadFile(ctx context.Context, channelID, threadTS string, data []byte, filename, title string) error {
	u.calls++
	return u.err
}

func newTestRegistry(search searcher, research researcher, scrape scraper, image imageGenerator, uploader Uploader) *Registry {
	return NewRegistry(search, research, scrape, image, uploader, zap.NewNop())
}

func TestDispatchWebSearch(t *testing.T) {
	reg := newTestRegistry(stubSearcher{payload: "results"}, stubResearcher{}, stubScraper{}, stubGenerator{}, &spyUploader{})

	result := reg.Dispatch(context.Background(), testThread, models.ToolCall{
		ID:        "call_1",
		Name:      NameWebSearch,
		Arguments: `{"query":"go"}`,
	})

	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Equal(t, NameWebSearch, result.Name)
	assert.Equal(t, "results", result.Content)
}

func TestDispatchWebSearchFailureDegradesToText(t *testing.T) {
	reg := newTestRegistry(stubSearcher{err: errors.New("boom")}, stubResearcher{}, stubScraper{}, stubGenerator{}, &spyUploader{})

	result := reg.Dispatch(context.Background(), testThread, models.ToolCall{
		ID:        "call_1",
		Name:      NameWebSearch,
		Arguments: `{"query":"go"}`,
	})

	assert.Equal(t, "Unable to search.", result.Content)
	assert.Equal(t, "call_1", result.ToolCallID)
}

func TestDispatchUnknownTool(t *testing.T) {
	reg := newTestRegistry(stubSearcher{}, stubResearcher{}, stubScraper{}, stubGenerator{}, &spyUploader{})

	result := reg.Dispatch(context.Background(), testThread, models.ToolCall{
		ID:        "call_9",
		Name:      "summon_demon",
		Arguments: `{}`,
	})

	assert.Equal(t, "Unsupported capability.", result.Content)
	assert.Equal(t, "call_9", result.ToolCallID)
}

func TestDispatchBadArguments(t *testing.T) {
	reg := newTestRegistry(stubSearcher{payload: "results"}, stubResearcher{}, stubScraper{}, stubGenerator{}, &spyUploader{})

	result := reg.Dispatch(context.Background(), testThread, models.ToolCall{
		ID:        "call_1",
		Name:      NameWebSearch,
		Arguments: `not json`,
	})

	assert.Equal(t, badArgumentsText, result.Content)
}

func TestDispatchImageGenerateSuccess(t *testing.T) {
	uploader := &spyUploader{}
	reg := newTestRegistry(stubSearcher{}, stubResearcher{}, stubScraper{}, stubGenerator{data: []byte{1, 2, 3}}, uploader)

	result := reg.Dispatch(context.Background(), testThread, models.ToolCall{
		ID:        "call_1",
		Name:      NameImageGenerate,
		Arguments: `{"prompt":"a lighthouse"}`,
	})

	assert.Equal(t, generatedText, result.Content)
	assert.Equal(t, 1, uploader.calls)
}

func TestDispatchImageGenerateGenerationFailure(t *testing.T) {
	uploader := &spyUploader{}
	reg := newTestRegistry(stubSearcher{}, stubResearcher{}, stubScraper{}, stubGenerator{err: errors.New("no gpu")}, uploader)

	result := reg.Dispatch(context.Background(), testThread, models.ToolCall{
		ID:        "call_1",
		Name:      NameImageGenerate,
		Arguments: `{"prompt":"a lighthouse"}`,
	})

	assert.Equal(t, generateFailedText, result.Content)
	assert.Zero(t, uploader.calls, "nothing to upload when generation fails")
}

func TestDispatchImageGenerateUploadFailure(t *testing.T) {
	uploader := &spyUploader{err: errors.New("channel gone")}
	reg := newTestRegistry(stubSearcher{}, stubResearcher{}, stubScraper{}, stubGenerator{data: []byte{1}}, uploader)

	result := reg.Dispatch(context.Background(), testThread, models.ToolCall{
		ID:        "call_1",
		Name:      NameImageGenerate,
		Arguments: `{"prompt":"a lighthouse"}`,
	})

	assert.Equal(t, uploadFailedText, result.Content)
	assert.NotEqual(t, generateFailedText, result.Content,
		"delivery failure must be distinguishable from generation failure")
}

func TestDeclarationsCoverEveryCapability(t *testing.T) {
	reg := newTestRegistry(stubSearcher{}, stubResearcher{}, stubScraper{}, stubGenerator{}, &spyUploader{})

	var names []string
	for _, d := range reg.Declarations() {
		names = append(names, d.Name)
		require.NotEmpty(t, d.Description)
		require.NotNil(t, d.Parameters)
	}
	assert.ElementsMatch(t, []string{NameWebSearch, NameDeepResearch, NameURLScrape, NameImageGenerate}, names)
}

func TestSearchClientAgainstServer(t *testing.T) {
	var gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte("search payload"))
	}))
	defer server.Close()

	client := NewSearchClient(server.URL, "secret", 5*time.Second, zap.NewNop())
	payload, err := client.Search(context.Background(), "weather in oslo")
	require.NoError(t, err)
	assert.Equal(t, "search payload", payload)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "weather in oslo", gotQuery)
}

func TestSearchClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewSearchClient(server.URL, "secret", 5*time.Second, zap.NewNop())
	_, err := client.Search(context.Background(), "anything")
	require.Error(t, err)

	// And through the registry the error becomes the fixed failure text.
	reg := newTestRegistry(client, stubResearcher{}, stubScraper{}, stubGenerator{}, &spyUploader{})
	result := reg.Dispatch(context.Background(), testThread, models.ToolCall{
		ID:        "call_1",
		Name:      NameWebSearch,
		Arguments: `{"query":"anything"}`,
	})
	assert.Equal(t, "Unable to search.", result.Content)
}

func TestScrapeClientAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/https://example.com/post", r.RequestURI)
		w.Write([]byte("# markdown"))
	}))
	defer server.Close()

	client := NewScrapeClient(server.URL, 5*time.Second, zap.NewNop())
	content, err := client.Scrape(context.Background(), "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, "# markdown", content)
}

func TestResearchClientAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte("## findings"))
	}))
	defer server.Close()

	client := NewResearchClient(server.URL, "key", 5*time.Second, zap.NewNop())
	report, err := client.Research(context.Background(), "history of lighthouses")
	require.NoError(t, err)
	assert.Equal(t, "## findings", report)
}
