package classifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otto-ai/otto/internal/model"
	"github.com/otto-ai/otto/internal/resilience"
)

type fakeModel struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	lastReq *model.Request
}

func (f *fakeModel) Complete(_ context.Context, req *model.Request) (*model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Response{Text: f.reply}, nil
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestClassifyEmptyText(t *testing.T) {
	fm := &fakeModel{err: errors.New("must not be called")}
	c := New(Config{Model: fm})

	for _, text := range []string{"", "   ", "\t\n"} {
		intent := c.Classify(context.Background(), text)
		require.NotNil(t, intent)
		assert.Equal(t, CategoryConversation, intent.Category)
		assert.Equal(t, SubEmpty, intent.Subcategory)
		assert.Equal(t, SourceHeuristic, intent.Source)
	}
	assert.Zero(t, fm.callCount())
}

func TestClassifyHeuristicScenarios(t *testing.T) {
	// No model wired: any case that needs the fallback would come back
	// as fallback_default and fail the source assertion.
	c := New(Config{})

	cases := []struct {
		text     string
		category Category
	}{
		{"pwd", CategoryLocationQuery},
		{"where am I?", CategoryLocationQuery},
		{"what's the current directory", CategoryLocationQuery},
		{"list the python files here", CategoryFileSearch},
		{"show me the files in the current directory", CategoryFileSearch},
		{"find the config file", CategoryFileSearch},
		{"show a.py and b.py", CategoryFileSearch},
		{"read main.go", CategoryFileRead},
		{"open the README.md", CategoryFileRead},
		{"run `ls -la`", CategoryShellExecution},
		{"execute make build", CategoryShellExecution},
		{"analyze sales.csv", CategoryDataAnalysis},
		{"summarize the quarterly dataset", CategoryDataAnalysis},
		{"compare Apple and Microsoft revenue", CategoryRemoteTool},
		{"find papers about transformers", CategoryRemoteTool},
		{"hello", CategoryConversation},
		{"thanks!", CategoryConversation},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			intent := c.Classify(context.Background(), tc.text)
			require.NotNil(t, intent)
			assert.Equal(t, tc.category, intent.Category)
			assert.Equal(t, SourceHeuristic, intent.Source)
		})
	}
}

func TestClassifyExtractsVariables(t *testing.T) {
	c := New(Config{})
	ctx := context.Background()

	intent := c.Classify(ctx, "list the python files here")
	assert.Equal(t, "py", intent.Variables["extension"])

	intent = c.Classify(ctx, "read main.go")
	assert.Equal(t, "main.go", intent.Variables["path"])

	intent = c.Classify(ctx, "run `go version`")
	assert.Equal(t, "go version", intent.Variables["command"])

	intent = c.Classify(ctx, "analyze data/sales.csv")
	assert.Equal(t, "data/sales.csv", intent.Variables["path"])
}

func TestCacheHitSkipsSecondModelCall(t *testing.T) {
	fm := &fakeModel{reply: `{"category":"conversation","subcategory":"question","confidence":0.9}`}
	c := New(Config{Model: fm})
	ctx := context.Background()

	first := c.Classify(ctx, "what is a monad")
	second := c.Classify(ctx, "What is a monad  ")

	require.Equal(t, 1, fm.callCount())
	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, SourceModel, second.Source)

	m := c.Metrics()
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(1), m.CacheMisses)
	assert.Equal(t, 1, m.CacheEntries)
}

func TestCacheHitReturnsIndependentCopy(t *testing.T) {
	c := New(Config{})
	ctx := context.Background()

	first := c.Classify(ctx, "read main.go")
	first.Variables["path"] = "tampered"

	second := c.Classify(ctx, "read main.go")
	assert.Equal(t, "main.go", second.Variables["path"])
}

func TestModelFallbackUsed(t *testing.T) {
	fm := &fakeModel{reply: `{"category":"remote_tool","subcategory":"financial","confidence":0.8}`}
	c := New(Config{Model: fm})

	intent := c.Classify(context.Background(), "how did tech perform this year")

	require.Equal(t, 1, fm.callCount())
	assert.Equal(t, CategoryRemoteTool, intent.Category)
	assert.Equal(t, "financial", intent.Subcategory)
	assert.Equal(t, SourceModel, intent.Source)
	assert.InDelta(t, 0.8, intent.Confidence, 0.0001)
}

func TestModelFallbackOutOfSchema(t *testing.T) {
	cases := []struct {
		name  string
		reply string
	}{
		{"prose", "sure, happy to help with that"},
		{"unknown category", `{"category":"weather","confidence":0.9}`},
		{"confidence out of range", `{"category":"conversation","confidence":1.5}`},
		{"broken json", `{"category": conversation}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fm := &fakeModel{reply: tc.reply}
			c := New(Config{Model: fm})

			intent := c.Classify(context.Background(), "how did tech perform this year")

			require.Equal(t, 1, fm.callCount())
			assert.Equal(t, CategoryConversation, intent.Category)
			assert.Equal(t, SourceFallbackDefault, intent.Source)
		})
	}
}

func TestModelErrorFallsBackToDefault(t *testing.T) {
	fm := &fakeModel{err: errors.New("upstream down")}
	c := New(Config{Model: fm})

	intent := c.Classify(context.Background(), "how did tech perform this year")

	assert.Equal(t, CategoryConversation, intent.Category)
	assert.Equal(t, SubGeneral, intent.Subcategory)
	assert.Equal(t, SourceFallbackDefault, intent.Source)
	assert.Zero(t, c.CacheLen(), "defaults must not be cached")
}

func TestOpenBreakerSkipsModel(t *testing.T) {
	fm := &fakeModel{reply: `{"category":"conversation","confidence":0.9}`}
	breaker := resilience.New("model", resilience.DefaultConfig())
	breaker.ForceOpen()
	c := New(Config{Model: fm, Breaker: breaker})

	start := time.Now()
	intent := c.Classify(context.Background(), "how did tech perform this year")
	elapsed := time.Since(start)

	assert.Zero(t, fm.callCount())
	assert.Equal(t, SourceFallbackDefault, intent.Source)
	assert.Less(t, elapsed, 100*time.Millisecond)
}

func TestRemoteTextTruncated(t *testing.T) {
	fm := &fakeModel{reply: `{"category":"conversation","confidence":0.9}`}
	c := New(Config{Model: fm, MaxRemoteChars: 50})

	c.Classify(context.Background(), strings.Repeat("z", 500))

	require.NotNil(t, fm.lastReq)
	assert.Contains(t, fm.lastReq.Prompt, strings.Repeat("z", 50))
	assert.NotContains(t, fm.lastReq.Prompt, strings.Repeat("z", 51))
	assert.True(t, fm.lastReq.JSON)
}

func TestParseModelIntent(t *testing.T) {
	intent := parseModelIntent("Here you go:\n" + `{"category":"file_read","confidence":0.85}` + "\n")
	require.NotNil(t, intent)
	assert.Equal(t, CategoryFileRead, intent.Category)

	intent = parseModelIntent(`{"category":"FILE_READ","confidence":0}`)
	require.NotNil(t, intent)
	assert.InDelta(t, 0.7, intent.Confidence, 0.0001)

	assert.Nil(t, parseModelIntent("no json at all"))
}

func TestIntentString(t *testing.T) {
	intent := &Intent{Category: CategoryConversation, Subcategory: SubGreeting}
	assert.Equal(t, "conversation.greeting", intent.String())

	intent = &Intent{Category: CategoryLocationQuery}
	assert.Equal(t, "location_query", intent.String())
}
