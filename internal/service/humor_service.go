package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"humormapper/internal/logger"
	"humormapper/internal/model"
	"humormapper/internal/repository"
	"humormapper/internal/service/inference"
)

// Attempt budget offered to users.
const (
	MaxAttemptsLimit   = 3
	DefaultMaxAttempts = 3
)

// History page sizes.
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
)

// Translator runs the model fallback loop. *inference.Sequencer implements it.
type Translator interface {
	Translate(ctx context.Context, text, culture string, maxAttempts int, obs inference.Observer) inference.Result
	Models() inference.ModelList
}

// TranslateInput is one user request to adapt a joke.
type TranslateInput struct {
	Text        string
	Culture     string
	MaxAttempts int // 0 means DefaultMaxAttempts
	Save        bool
}

// TranslateResult is what the user sees after a translation call. Text and
// Model are empty when every attempted model failed.
type TranslateResult struct {
	Text      string
	Model     string
	Attempts  []inference.Attempt
	Saved     bool
	RecordID  int64
	SaveError string
}

// OK reports whether a model produced an accepted response.
func (r *TranslateResult) OK() bool {
	return r.Model != ""
}

// HumorService adapts jokes for a target culture and keeps per-user history.
type HumorService interface {
	// Translate validates the input, runs the fallback loop and optionally
	// saves an accepted result. obs may be nil.
	Translate(ctx context.Context, session *Session, in TranslateInput, obs inference.Observer) (*TranslateResult, error)
	// History returns the session owner's most recent saved translations, newest first.
	History(ctx context.Context, session *Session, limit int) ([]model.TranslationRecord, error)
	// Models returns the model priority list.
	Models() []string
	// MaxAttempts returns the largest accepted attempt budget.
	MaxAttempts() int
}

type humorService struct {
	translator Translator
	records    repository.TranslationRepository
	inflight   singleflight.Group
}

func NewHumorService(translator Translator, records repository.TranslationRepository) HumorService {
	return &humorService{
		translator: translator,
		records:    records,
	}
}

func (s *humorService) MaxAttempts() int {
	if n := s.translator.Models().Len(); n < MaxAttemptsLimit {
		return n
	}
	return MaxAttemptsLimit
}

func (s *humorService) Models() []string {
	return s.translator.Models().All()
}

func (s *humorService) Translate(ctx context.Context, session *Session, in TranslateInput, obs inference.Observer) (*TranslateResult, error) {
	if session == nil {
		return nil, ErrUnauthenticated
	}

	text := strings.TrimSpace(in.Text)
	culture := strings.TrimSpace(in.Culture)
	if text == "" || culture == "" {
		return nil, fmt.Errorf("%w: joke and target culture are required", ErrInvalid)
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if maxAttempts < 1 || maxAttempts > s.MaxAttempts() {
		return nil, fmt.Errorf("%w: models to try must be between 1 and %d", ErrInvalid, s.MaxAttempts())
	}

	// A double-submitted form shares the first submission's run and save. The
	// run is detached from any one caller, so a caller that goes away neither
	// cuts it short for the others nor keeps receiving progress.
	var progress *detachableObserver
	var runObs inference.Observer
	if obs != nil {
		progress = &detachableObserver{obs: obs}
		runObs = progress
	}
	key := fmt.Sprintf("%d\x00%d\x00%t\x00%s\x00%s", session.UserID, maxAttempts, in.Save, culture, text)
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		return s.translate(context.WithoutCancel(ctx), session, text, culture, maxAttempts, in.Save, runObs), nil
	})

	select {
	case r := <-ch:
		if r.Shared {
			logger.Debug("translation shared", "module", "service", "action", "translate", "resource", "humor", "result", "ok", "user_id", session.UserID)
		}
		result := *r.Val.(*TranslateResult)
		return &result, nil
	case <-ctx.Done():
		progress.detach()
		logger.Warn("translation abandoned", "module", "service", "action", "translate", "resource", "humor", "result", "cancelled", "user_id", session.UserID)
		return nil, fmt.Errorf("translate: %w", ctx.Err())
	}
}

// detachableObserver forwards progress until detach is called. After detach
// returns no further callbacks reach the wrapped observer.
type detachableObserver struct {
	mu  sync.Mutex
	obs inference.Observer
}

func (d *detachableObserver) AttemptStarted(index int, model string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.obs != nil {
		d.obs.AttemptStarted(index, model)
	}
}

func (d *detachableObserver) AttemptFinished(a inference.Attempt) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.obs != nil {
		d.obs.AttemptFinished(a)
	}
}

func (d *detachableObserver) detach() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.obs = nil
	d.mu.Unlock()
}

func (s *humorService) translate(ctx context.Context, session *Session, text, culture string, maxAttempts int, save bool, obs inference.Observer) *TranslateResult {
	res := s.translator.Translate(ctx, text, culture, maxAttempts, obs)
	out := &TranslateResult{
		Text:     res.Text,
		Model:    res.Model,
		Attempts: res.Attempts,
	}

	if !res.OK() {
		logger.Warn("translation failed", "module", "service", "action", "translate", "resource", "humor", "result", "failed",
			"user_id", session.UserID, "attempts", len(res.Attempts))
		return out
	}

	logger.Info("translation succeeded", "module", "service", "action", "translate", "resource", "humor", "result", "ok",
		"user_id", session.UserID, "model", res.Model, "attempts", len(res.Attempts))

	if !save {
		return out
	}

	rec, err := s.records.Insert(ctx, model.TranslationRecord{
		UserID:         session.UserID,
		UserEmail:      session.Email,
		OriginalText:   text,
		TargetCulture:  culture,
		TranslatedText: res.Text,
		ModelUsed:      res.Model,
	})
	if err != nil {
		logger.Error("translation save failed", "module", "service", "action", "save", "resource", "humor", "result", "failed",
			"user_id", session.UserID, "error", err)
		out.SaveError = "failed to save translation"
		return out
	}

	out.Saved = true
	out.RecordID = rec.ID
	logger.Info("translation saved", "module", "service", "action", "save", "resource", "humor", "result", "ok",
		"user_id", session.UserID, "record_id", rec.ID)
	return out
}

func (s *humorService) History(ctx context.Context, session *Session, limit int) ([]model.TranslationRecord, error) {
	if session == nil {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	records, err := s.records.ListRecentByUser(ctx, session.UserID, limit)
	if err != nil {
		logger.Warn("history load failed", "module", "service", "action", "fetch", "resource", "humor", "result", "failed",
			"user_id", session.UserID, "error", err)
		return nil, fmt.Errorf("list translations: %w", err)
	}
	return records, nil
}
