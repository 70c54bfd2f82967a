package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/examprep-tools/briefbot/internal/brief"
	"github.com/examprep-tools/briefbot/pkg/llm"
)

// Enrichment defaults.
const (
	DefaultBatchSize   = 8
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultBatchPause  = 2 * time.Second
)

// Result is the strict shape of one enriched item coming back from the
// model. Fields are validated and defaulted at the assembly boundary, so
// downstream code never checks for missing values.
type Result struct {
	Headline         string   `json:"headline"`
	Summary          string   `json:"summary"`
	Category         string   `json:"category"`
	Paper            string   `json:"paper"`
	SubTopics        []string `json:"subTopics"`
	Importance       string   `json:"importance"`
	Tags             []string `json:"tags"`
	KeyTerms         []string `json:"keyTerms"`
	Prelims          bool     `json:"prelimsRelevant"`
	PrelimsPoints    []string `json:"prelimsPoints"`
	Mains            bool     `json:"mainsRelevant"`
	MainsPoints      []string `json:"mainsPoints"`
	ImageDescription string   `json:"imageDescription"`
	Skip             bool     `json:"skip"`
}

// Enriched pairs a model result with the item it was produced from.
// Pairing is strictly positional within a batch.
type Enriched struct {
	Item   brief.Item
	Result Result
}

// Enricher batches selected items through a chain of generative models.
// Models are tried in order: a definitive quota-exhaustion signal advances
// the chain immediately, a transient rate limit retries the same model with
// exponential backoff plus jitter.
type Enricher struct {
	clients     []llm.Client
	logger      *slog.Logger
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	batchPause  time.Duration

	// sleep is swappable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEnricher builds an enricher over an ordered model chain.
func NewEnricher(clients []llm.Client, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		clients:     clients,
		logger:      logger,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		batchPause:  DefaultBatchPause,
		sleep:       sleepCtx,
	}
}

// SetPacing overrides batch size, retry ceiling, backoff base, and the
// inter-batch pause. Non-positive values keep the defaults.
func (e *Enricher) SetPacing(batchSize, maxAttempts int, baseDelay, batchPause time.Duration) {
	if batchSize > 0 {
		e.batchSize = batchSize
	}
	if maxAttempts > 0 {
		e.maxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		e.baseDelay = baseDelay
	}
	if batchPause >= 0 {
		e.batchPause = batchPause
	}
}

// EnrichAll processes items in fixed-size batches, sequentially to respect
// the provider's shared rate limit. A batch that fails across the whole
// model chain is logged and skipped; the run continues. Items the model
// flags as skip are dropped from the output.
func (e *Enricher) EnrichAll(ctx context.Context, items []brief.Item) (enriched []Enriched, skippedBatches int) {
	for start := 0; start < len(items); start += e.batchSize {
		end := start + e.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		if start > 0 && e.batchPause > 0 {
			if err := e.sleep(ctx, e.batchPause); err != nil {
				e.logger.Warn("enrichment interrupted", "error", err)
				skippedBatches += batchesLeft(len(items), start, e.batchSize)
				return enriched, skippedBatches
			}
		}

		results, err := e.enrichBatch(ctx, batch)
		if err != nil {
			skippedBatches++
			e.logger.Error("batch abandoned",
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			continue
		}

		for i, res := range results {
			if res.Skip {
				continue
			}
			enriched = append(enriched, Enriched{Item: batch[i], Result: res})
		}
	}
	return enriched, skippedBatches
}

func batchesLeft(total, start, size int) int {
	remaining := total - start
	return (remaining + size - 1) / size
}

// enrichBatch walks the model chain for a single batch.
//
// Per model, per attempt: call, then classify the outcome — success parses
// and returns; quota exhaustion abandons the model with zero sleep; a rate
// limit backs off and retries the same model; anything else consumes an
// attempt. A malformed response body is a hard error for the batch: it is
// not a transport failure, so neither retried nor routed to another model.
func (e *Enricher) enrichBatch(ctx context.Context, batch []brief.Item) ([]Result, error) {
	req := &llm.Request{
		System:   systemPrompt,
		Messages: []llm.Message{{Role: "user", Content: buildBatchPrompt(batch)}},
		JSONMode: true,
	}

	var lastErr error
	for _, client := range e.clients {
	attempts:
		for attempt := 0; attempt < e.maxAttempts; attempt++ {
			resp, err := client.Generate(ctx, req)
			if err == nil {
				return parseBatchResponse(resp.Content, len(batch))
			}
			lastErr = err

			switch {
			case llm.IsQuotaExhausted(err):
				e.logger.Warn("model quota exhausted, advancing chain",
					"model", client.Model(), "error", err)
				break attempts

			case llm.IsRateLimited(err):
				if attempt == e.maxAttempts-1 {
					break attempts
				}
				delay := e.backoffDelay(attempt)
				if hint, ok := llm.RetryAfterHint(err); ok && hint > delay {
					delay = hint
				}
				e.logger.Warn("model rate limited, backing off",
					"model", client.Model(), "attempt", attempt+1, "delay", delay)
				if serr := e.sleep(ctx, delay); serr != nil {
					return nil, serr
				}

			default:
				if attempt == e.maxAttempts-1 {
					break attempts
				}
				e.logger.Warn("model call failed, retrying",
					"model", client.Model(), "attempt", attempt+1, "error", err)
				if serr := e.sleep(ctx, e.backoffDelay(attempt)); serr != nil {
					return nil, serr
				}
			}
		}
	}

	return nil, fmt.Errorf("all models exhausted: %w", lastErr)
}

// backoffDelay is base x 2^attempt plus up to one base of jitter.
func (e *Enricher) backoffDelay(attempt int) time.Duration {
	delay := float64(e.baseDelay) * math.Pow(2, float64(attempt))
	jitter := rand.Float64() * float64(e.baseDelay)
	return time.Duration(delay + jitter)
}

// parseBatchResponse strips optional code fences and JSON-parses the model
// output into exactly one result per batch item.
func parseBatchResponse(content string, batchLen int) ([]Result, error) {
	content = stripCodeFences(content)

	var results []Result
	if err := json.Unmarshal([]byte(content), &results); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	if len(results) != batchLen {
		return nil, fmt.Errorf("model returned %d results for %d items", len(results), batchLen)
	}
	return results, nil
}

// stripCodeFences removes a surrounding ```json ... ``` wrapper, which
// models emit even when asked for bare JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const systemPrompt = `You are an editor preparing daily current-affairs briefs for competitive exam aspirants.

You receive a numbered list of news items. Respond with ONLY a JSON array containing exactly one object per input item, in the same order. No prose, no markdown.

Each object has exactly these keys:
{
  "headline": "reworded, exam-oriented headline",
  "summary": "3-4 sentence explainer of why this matters for the exam",
  "category": one of "polity","economy","international","environment","science-tech","society","security","history-culture","geography","miscellaneous",
  "paper": one of "gs1","gs2","gs3","gs4",
  "subTopics": ["syllabus sub-topics touched"],
  "importance": one of "high","medium","low",
  "tags": ["short topical tags"],
  "keyTerms": ["terms an aspirant should know"],
  "prelimsRelevant": true or false,
  "prelimsPoints": ["factual points useful for objective questions"],
  "mainsRelevant": true or false,
  "mainsPoints": ["analytical points useful for essays and answers"],
  "imageDescription": "one-line description of a suitable illustration",
  "skip": true only when the item has no exam relevance at all
}

For skipped items still emit the object (with "skip": true); never omit or reorder entries.`

// buildBatchPrompt numbers each item with its title, source, section, and
// cleaned description.
func buildBatchPrompt(batch []brief.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Enrich these %d news items:\n\n", len(batch))
	for i, item := range batch {
		fmt.Fprintf(&sb, "[%d] Title: %s\nSource: %s | Section: %s\n", i+1, item.Title, item.Source, item.Section)
		if item.Description != "" {
			fmt.Fprintf(&sb, "Description: %s\n", item.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
