package inference

import (
	"context"
	"strings"
	"time"

	"humormapper/internal/logger"
)

// ModelList is an immutable, ordered model priority list.
type ModelList struct {
	models []string
}

// NewModelList copies models, dropping blank entries. It fails when nothing is left.
func NewModelList(models ...string) (ModelList, error) {
	list := make([]string, 0, len(models))
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			list = append(list, m)
		}
	}
	if len(list) == 0 {
		return ModelList{}, ErrNoModels
	}
	return ModelList{models: list}, nil
}

func (l ModelList) Len() int {
	return len(l.models)
}

func (l ModelList) At(i int) string {
	return l.models[i]
}

// All returns a copy of the list.
func (l ModelList) All() []string {
	return append([]string(nil), l.models...)
}

// SequencerConfig controls attempt timing and generation parameters.
type SequencerConfig struct {
	// AttemptTimeout bounds a single model call.
	AttemptTimeout time.Duration
	// Delay is the fixed pause between attempts. It does not grow.
	Delay  time.Duration
	Params Params
}

// DefaultSequencerConfig returns the 30s timeout, 2s pause, 500 tokens, 0.7 temperature setup.
func DefaultSequencerConfig() SequencerConfig {
	return SequencerConfig{
		AttemptTimeout: 30 * time.Second,
		Delay:          2 * time.Second,
		Params:         DefaultParams,
	}
}

// Result is the outcome of one translation call. Text and Model are empty
// when no model produced an accepted response.
type Result struct {
	Text     string    `json:"text"`
	Model    string    `json:"model"`
	Attempts []Attempt `json:"attempts"`
}

// OK reports whether a model's response was accepted.
func (r Result) OK() bool {
	return r.Model != ""
}

// Observer receives progress while a translation runs. Calls happen on the
// translating goroutine, in attempt order.
type Observer interface {
	AttemptStarted(index int, model string)
	AttemptFinished(attempt Attempt)
}

// Sequencer tries models in priority order until one gives an acceptable answer.
type Sequencer struct {
	provider Provider
	models   ModelList
	cfg      SequencerConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewSequencer(provider Provider, models ModelList, cfg SequencerConfig) *Sequencer {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultSequencerConfig().AttemptTimeout
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	// Unset params take the defaults; a set field is kept as given, so an
	// explicit temperature of 0 survives.
	if cfg.Params == (Params{}) {
		cfg.Params = DefaultParams
	}
	if cfg.Params.MaxTokens <= 0 {
		cfg.Params.MaxTokens = DefaultParams.MaxTokens
	}
	if cfg.Params.Temperature < 0 {
		cfg.Params.Temperature = DefaultParams.Temperature
	}
	return &Sequencer{
		provider: provider,
		models:   models,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// Models returns the priority list.
func (s *Sequencer) Models() ModelList {
	return s.models
}

// MaxAttempts returns how many models a single call may contact.
func (s *Sequencer) MaxAttempts() int {
	return s.models.Len()
}

// Translate runs the fallback loop. maxAttempts is clamped to [1, number of
// models]. Each model is contacted at most once, strictly in order, and the
// returned log has one entry per contacted model. Cancelling ctx stops the
// loop before the next model is contacted.
func (s *Sequencer) Translate(ctx context.Context, text, culture string, maxAttempts int, obs Observer) Result {
	n := s.clamp(maxAttempts)
	prompt := BuildHumorPrompt(text, culture)
	attempts := make([]Attempt, 0, n)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			logger.Warn("translation cancelled", "module", "inference", "action", "translate", "resource", "model", "result", "cancelled", "attempts", len(attempts))
			break
		}

		model := s.models.At(i)
		if obs != nil {
			obs.AttemptStarted(i+1, model)
		}

		attempt, content := s.attempt(ctx, i+1, model, prompt)
		attempts = append(attempts, attempt)
		if obs != nil {
			obs.AttemptFinished(attempt)
		}

		if attempt.Outcome == OutcomeSuccess {
			return Result{Text: content, Model: model, Attempts: attempts}
		}

		if i < n-1 {
			if err := s.sleep(ctx, s.cfg.Delay); err != nil {
				break
			}
		}
	}

	logger.Warn("all models failed", "module", "inference", "action", "translate", "resource", "model", "result", "failed", "attempts", len(attempts))
	return Result{Attempts: attempts}
}

func (s *Sequencer) attempt(ctx context.Context, index int, model, prompt string) (Attempt, string) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	start := time.Now()
	content, err := s.provider.Complete(attemptCtx, model, prompt, s.cfg.Params)
	outcome, detail := classify(attemptCtx, content, err)

	attempt := Attempt{
		Index:     index,
		Model:     model,
		Outcome:   outcome,
		Detail:    detail,
		LatencyMs: time.Since(start).Milliseconds(),
	}

	if outcome == OutcomeSuccess {
		logger.Info("model attempt", "module", "inference", "action", "translate", "resource", "model", "result", "ok",
			"index", index, "model", model, "provider", s.provider.Name(), "duration_ms", attempt.LatencyMs)
	} else {
		logger.Warn("model attempt", "module", "inference", "action", "translate", "resource", "model", "result", "failed",
			"index", index, "model", model, "provider", s.provider.Name(), "outcome", string(outcome), "detail", detail,
			"duration_ms", attempt.LatencyMs)
	}
	return attempt, content
}

func (s *Sequencer) clamp(maxAttempts int) int {
	n := s.models.Len()
	if n == 0 {
		return 0
	}
	if maxAttempts < 1 {
		return 1
	}
	if maxAttempts < n {
		return maxAttempts
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
