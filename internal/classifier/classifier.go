// Package classifier turns raw request text into a structured Intent.
//
// Classification order, first hit wins:
//  1. empty text short-circuit
//  2. TTL cache keyed by normalized text
//  3. ordered heuristic rules (instant, free)
//  4. model fallback behind the shared breaker (~2s budget)
//  5. safe conversation default
//
// Classify never fails: every layer degrades to the next and the last
// layer always produces a value.
package classifier

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/otto-ai/otto/internal/model"
	"github.com/otto-ai/otto/internal/prompt"
	"github.com/otto-ai/otto/internal/resilience"
	"github.com/otto-ai/otto/pkg/logx"
)

// Model is the remote classification fallback.
type Model interface {
	Complete(ctx context.Context, req *model.Request) (*model.Response, error)
}

// Config tunes the classifier. Zero values take defaults.
type Config struct {
	CacheSize      int
	CacheTTL       time.Duration
	RemoteTimeout  time.Duration // budget for one fallback call
	MaxRemoteChars int           // text is truncated to this before a fallback call
	MinConfidence  float64       // heuristic matches below this defer to the model

	Model   Model                      // nil disables the fallback layer
	Breaker *resilience.CircuitBreaker // nil calls the model unguarded
	Prompts *prompt.Builder
}

// Classifier classifies request text. Safe for concurrent use.
type Classifier struct {
	config  Config
	rules   []*Rule
	cache   *cache
	prompts *prompt.Builder
}

// New creates a classifier with the default rule table.
func New(cfg Config) *Classifier {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 2 * time.Second
	}
	if cfg.MaxRemoteChars <= 0 {
		cfg.MaxRemoteChars = 2000
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.7
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = prompt.NewBuilder("")
	}
	return &Classifier{
		config:  cfg,
		rules:   defaultRules(),
		cache:   newCache(cfg.CacheSize, cfg.CacheTTL),
		prompts: prompts,
	}
}

// Classify determines the intent of the request text. It always
// returns a value and never blocks past the fallback budget.
func (c *Classifier) Classify(ctx context.Context, text string) *Intent {
	if strings.TrimSpace(text) == "" {
		return &Intent{
			Category:    CategoryConversation,
			Subcategory: SubEmpty,
			Source:      SourceHeuristic,
			Confidence:  1.0,
		}
	}

	if intent, ok := c.cache.Get(text); ok {
		return intent
	}

	if intent := c.matchRules(text); intent != nil && intent.Confidence >= c.config.MinConfidence {
		intent.Variables = extractVariables(text, intent.Category)
		c.cache.Put(text, intent)
		return intent
	}

	if intent := c.classifyRemote(ctx, text); intent != nil {
		intent.Variables = extractVariables(text, intent.Category)
		c.cache.Put(text, intent)
		return intent
	}

	return &Intent{
		Category:    CategoryConversation,
		Subcategory: SubGeneral,
		Source:      SourceFallbackDefault,
		Confidence:  0.5,
	}
}

// matchRules evaluates the rule table in order and returns the first
// match, or nil when no rule fires.
func (c *Classifier) matchRules(text string) *Intent {
	msg := normalize(text)
	for _, rule := range c.rules {
		if rule.Matches(msg) {
			return &Intent{
				Category:    rule.Category,
				Subcategory: rule.Subcategory,
				Source:      SourceHeuristic,
				Confidence:  rule.Confidence,
			}
		}
	}
	return nil
}

// classifyRemote asks the model for a category through the breaker.
// Any failure (timeout, breaker open, out-of-schema answer) returns
// nil so the caller falls through to the safe default.
func (c *Classifier) classifyRemote(ctx context.Context, text string) *Intent {
	if c.config.Model == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RemoteTimeout)
	defer cancel()

	req := &model.Request{
		Prompt:    c.prompts.Classification(truncateForRemote(text, c.config.MaxRemoteChars), categoryDocs()),
		MaxTokens: 128,
		JSON:      true,
	}

	var resp *model.Response
	call := func(ctx context.Context) error {
		var err error
		resp, err = c.config.Model.Complete(ctx, req)
		return err
	}

	var err error
	if c.config.Breaker != nil {
		err = c.config.Breaker.Call(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		logx.Debug().Err(err).Msg("classification fallback unavailable")
		return nil
	}

	intent := parseModelIntent(resp.Text)
	if intent == nil {
		logx.Debug().Str("raw", truncateForRemote(resp.Text, 120)).Msg("classification response out of schema")
	}
	return intent
}

// SetRules replaces the rule table.
func (c *Classifier) SetRules(rules []*Rule) {
	c.rules = rules
}

// AddRule appends a rule to the table.
func (c *Classifier) AddRule(rule *Rule) {
	c.rules = append(c.rules, rule)
}

// PurgeCache drops all memoized classifications.
func (c *Classifier) PurgeCache() {
	c.cache.Purge()
}

// CacheLen reports the number of live cache entries.
func (c *Classifier) CacheLen() int {
	return c.cache.Len()
}

// Metrics is a snapshot of the classification cache's counters.
type Metrics struct {
	CacheHits    int64 `json:"cache_hits"`
	CacheMisses  int64 `json:"cache_misses"`
	CacheEntries int   `json:"cache_entries"`
}

// Metrics returns cache hit/miss counters and the live entry count.
func (c *Classifier) Metrics() Metrics {
	return Metrics{
		CacheHits:    c.cache.hits.Load(),
		CacheMisses:  c.cache.misses.Load(),
		CacheEntries: c.cache.Len(),
	}
}

// parseModelIntent decodes the fallback answer against the closed
// category set. Anything out of schema is a miss.
func parseModelIntent(raw string) *Intent {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil
	}

	var decoded struct {
		Category    string  `json:"category"`
		Subcategory string  `json:"subcategory"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &decoded); err != nil {
		return nil
	}

	category := Category(strings.ToLower(strings.TrimSpace(decoded.Category)))
	if !ValidCategory(category) {
		return nil
	}
	confidence := decoded.Confidence
	if confidence < 0 || confidence > 1 {
		return nil
	}
	if confidence == 0 {
		confidence = 0.7
	}

	return &Intent{
		Category:    category,
		Subcategory: strings.ToLower(strings.TrimSpace(decoded.Subcategory)),
		Source:      SourceModel,
		Confidence:  confidence,
	}
}

func categoryDocs() []prompt.CategoryDoc {
	return []prompt.CategoryDoc{
		{Name: "location_query", Description: "asks where the assistant is working, e.g. the current directory"},
		{Name: "file_search", Description: "wants a listing of files matching a pattern, extension, or folder"},
		{Name: "file_read", Description: "wants the contents of one specific file"},
		{Name: "shell_execution", Description: "wants a shell command executed"},
		{Name: "data_analysis", Description: "wants a local data file summarized or analyzed"},
		{Name: "remote_tool", Description: "needs external lookups such as financial figures or research papers"},
		{Name: "conversation", Description: "small talk or a general question answered directly"},
	}
}

func truncateForRemote(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}
