package autoresponse

import (
	"context"
	"regexp"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tiendatec/chat-platform/internal/textnorm"
	"github.com/tiendatec/chat-platform/pkg/logging"
)

var matcherTracer = otel.Tracer("chatplatform/autoresponse-matcher")

// RuleSource lists the active rules. Satisfied by *Store.
type RuleSource interface {
	ListActive(ctx context.Context) ([]Rule, error)
}

// compiledRule is a rule prepared for matching: the trigger is normalized and
// pattern rules carry their compiled regexp.
type compiledRule struct {
	rule    Rule
	trigger string
	pattern *regexp.Regexp
}

// Matcher answers rule lookups from an in-memory snapshot that is refreshed
// from the store once per TTL. A stale snapshot within the TTL window is
// acceptable; concurrent readers never block a refresh already underway.
type Matcher struct {
	source RuleSource
	ttl    time.Duration
	logger *logging.Logger
	now    func() time.Time

	mu           sync.RWMutex
	snapshot     []compiledRule
	lastLoadedAt time.Time
}

// NewMatcher creates a matcher with an empty cache; the first lookup loads it.
func NewMatcher(source RuleSource, ttl time.Duration, logger *logging.Logger) *Matcher {
	if source == nil {
		panic("autoresponse: rule source required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Matcher{source: source, ttl: ttl, logger: logger, now: time.Now}
}

// needsRefresh reports whether the snapshot is older than the TTL at the
// given instant. Pure so refresh timing is testable without a clock.
func needsRefresh(lastLoadedAt time.Time, ttl time.Duration, now time.Time) bool {
	if lastLoadedAt.IsZero() {
		return true
	}
	return now.Sub(lastLoadedAt) >= ttl
}

// ReloadCache replaces the snapshot with the store's current active rules.
// Rules with a malformed pattern are skipped, not fatal.
func (m *Matcher) ReloadCache(ctx context.Context) error {
	rules, err := m.source.ListActive(ctx)
	if err != nil {
		return err
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{rule: r, trigger: textnorm.Normalize(r.Trigger)}
		if r.Kind == TriggerPattern {
			re, err := regexp.Compile(r.Trigger)
			if err != nil {
				m.logger.Warn("skipping rule with invalid pattern", "rule_id", r.ID, "error", err)
				continue
			}
			cr.pattern = re
		}
		if cr.trigger == "" && cr.pattern == nil {
			continue
		}
		compiled = append(compiled, cr)
	}

	m.mu.Lock()
	m.snapshot = compiled
	m.lastLoadedAt = m.now()
	m.mu.Unlock()

	m.logger.Debug("auto-response cache reloaded", "rules", len(compiled))
	return nil
}

// FindMatch returns the highest-priority rule matching the text. The cache is
// refreshed lazily when expired; if the refresh fails the previous snapshot
// keeps serving and the error is logged.
func (m *Matcher) FindMatch(ctx context.Context, text string) (Match, bool) {
	_, span := matcherTracer.Start(ctx, "autoresponse.find_match")
	defer span.End()

	m.mu.RLock()
	loadedAt := m.lastLoadedAt
	m.mu.RUnlock()

	if needsRefresh(loadedAt, m.ttl, m.now()) {
		if err := m.ReloadCache(ctx); err != nil {
			m.logger.Error("auto-response cache refresh failed", "error", err)
		}
	}

	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return Match{}, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Snapshot is ordered by descending priority; first hit wins.
	for _, cr := range m.snapshot {
		if cr.matches(normalized, text) {
			span.SetAttributes(
				attribute.String("autoresponse.rule_id", cr.rule.ID),
				attribute.String("autoresponse.category", cr.rule.Category),
			)
			return Match{Response: cr.rule.Response, Category: cr.rule.Category}, true
		}
	}
	return Match{}, false
}

func (cr compiledRule) matches(normalized, raw string) bool {
	switch cr.rule.Kind {
	case TriggerExact:
		return normalized == cr.trigger
	case TriggerKeyword:
		return containsWholeWord(normalized, cr.trigger)
	case TriggerPrefix:
		return normalized == cr.trigger || hasPrefixWord(normalized, cr.trigger)
	case TriggerPattern:
		return cr.pattern != nil && cr.pattern.MatchString(raw)
	default:
		return false
	}
}

func hasPrefixWord(normalized, prefix string) bool {
	return len(normalized) > len(prefix) &&
		normalized[:len(prefix)] == prefix &&
		normalized[len(prefix)] == ' '
}

// containsWholeWord matches the phrase on space boundaries so "iva" does not
// fire inside "derivar".
func containsWholeWord(normalized, phrase string) bool {
	for idx := 0; idx+len(phrase) <= len(normalized); idx++ {
		if normalized[idx:idx+len(phrase)] != phrase {
			continue
		}
		startOK := idx == 0 || normalized[idx-1] == ' '
		end := idx + len(phrase)
		endOK := end == len(normalized) || normalized[end] == ' '
		if startOK && endOK {
			return true
		}
	}
	return false
}
