package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"humormapper/internal/model"
	"humormapper/internal/repository"
	"humormapper/internal/repository/mock"
	"humormapper/internal/repository/testutil"
	"humormapper/internal/service"
	"humormapper/internal/service/inference"
)

const acceptedJoke = "Why did the chicken cross the road? To avoid HR."

// translatorStub returns a canned result and records the arguments it saw.
type translatorStub struct {
	models  inference.ModelList
	result  inference.Result
	calls   atomic.Int32
	gate    chan struct{}
	lastMax int
	lastIn  [2]string
}

func newTranslatorStub(t *testing.T, result inference.Result, models ...string) *translatorStub {
	t.Helper()
	if len(models) == 0 {
		models = []string{"v/A", "v/B", "v/C", "v/D"}
	}
	list, err := inference.NewModelList(models...)
	require.NoError(t, err)
	return &translatorStub{models: list, result: result}
}

func (s *translatorStub) Translate(ctx context.Context, text, culture string, maxAttempts int, obs inference.Observer) inference.Result {
	s.calls.Add(1)
	s.lastMax = maxAttempts
	s.lastIn = [2]string{text, culture}
	if s.gate != nil {
		<-s.gate
	}
	return s.result
}

func (s *translatorStub) Models() inference.ModelList { return s.models }

func successResult() inference.Result {
	return inference.Result{
		Text:  acceptedJoke,
		Model: "v/B",
		Attempts: []inference.Attempt{
			{Index: 1, Model: "v/A", Outcome: inference.OutcomeRateLimited},
			{Index: 2, Model: "v/B", Outcome: inference.OutcomeSuccess},
		},
	}
}

func failedResult() inference.Result {
	return inference.Result{Attempts: []inference.Attempt{
		{Index: 1, Model: "v/A", Outcome: inference.OutcomeTimeout},
	}}
}

var testSession = &service.Session{TokenID: "tok", UserID: 42, Email: "u@example.com"}

func TestHumorService_Translate_SavesAcceptedResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	records := mock.NewMockTranslationRepository(ctrl)
	tr := newTranslatorStub(t, successResult())
	svc := service.NewHumorService(tr, records)

	records.EXPECT().
		Insert(gomock.Any(), model.TranslationRecord{
			UserID:         42,
			UserEmail:      "u@example.com",
			OriginalText:   "Why did the chicken cross the road?",
			TargetCulture:  "Corporate",
			TranslatedText: acceptedJoke,
			ModelUsed:      "v/B",
		}).
		Return(model.TranslationRecord{ID: 99}, nil)

	res, err := svc.Translate(context.Background(), testSession, service.TranslateInput{
		Text:        "  Why did the chicken cross the road?  ",
		Culture:     " Corporate ",
		MaxAttempts: 2,
		Save:        true,
	}, nil)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.True(t, res.Saved)
	require.Equal(t, int64(99), res.RecordID)
	require.Equal(t, "v/B", res.Model)
	require.Len(t, res.Attempts, 2)
	require.Equal(t, 2, tr.lastMax)
	require.Equal(t, [2]string{"Why did the chicken cross the road?", "Corporate"}, tr.lastIn)
}

func TestHumorService_Translate_NoRecordAfterTotalFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	records := mock.NewMockTranslationRepository(ctrl) // no Insert expected
	svc := service.NewHumorService(newTranslatorStub(t, failedResult()), records)

	res, err := svc.Translate(context.Background(), testSession, service.TranslateInput{
		Text: "joke", Culture: "Gen Z", MaxAttempts: 1, Save: true,
	}, nil)
	require.NoError(t, err)
	require.False(t, res.OK())
	require.False(t, res.Saved)
	require.Empty(t, res.Text)
	require.Len(t, res.Attempts, 1)
}

func TestHumorService_Translate_NoSaveWhenNotRequested(t *testing.T) {
	ctrl := gomock.NewController(t)
	records := mock.NewMockTranslationRepository(ctrl)
	svc := service.NewHumorService(newTranslatorStub(t, successResult()), records)

	res, err := svc.Translate(context.Background(), testSession, service.TranslateInput{
		Text: "joke", Culture: "Gen Z", Save: false,
	}, nil)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.False(t, res.Saved)
}

func TestHumorService_Translate_SaveFailureDoesNotFailTranslation(t *testing.T) {
	ctrl := gomock.NewController(t)
	records := mock.NewMockTranslationRepository(ctrl)
	svc := service.NewHumorService(newTranslatorStub(t, successResult()), records)

	records.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(model.TranslationRecord{}, errors.New("disk full"))

	res, err := svc.Translate(context.Background(), testSession, service.TranslateInput{
		Text: "joke", Culture: "Gen Z", Save: true,
	}, nil)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.False(t, res.Saved)
	require.Equal(t, "failed to save translation", res.SaveError)
}

func TestHumorService_Translate_EmptyInputShortCircuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := newTranslatorStub(t, successResult())
	svc := service.NewHumorService(tr, mock.NewMockTranslationRepository(ctrl))

	for _, in := range []service.TranslateInput{
		{Text: "   ", Culture: "Japanese"},
		{Text: "joke", Culture: "\t"},
		{},
	} {
		_, err := svc.Translate(context.Background(), testSession, in, nil)
		require.ErrorIs(t, err, service.ErrInvalid)
	}
	require.Zero(t, tr.calls.Load())
}

func TestHumorService_Translate_AttemptBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := newTranslatorStub(t, failedResult())
	svc := service.NewHumorService(tr, mock.NewMockTranslationRepository(ctrl))
	ctx := context.Background()

	for _, n := range []int{-1, 4} {
		_, err := svc.Translate(ctx, testSession, service.TranslateInput{Text: "j", Culture: "c", MaxAttempts: n}, nil)
		require.ErrorIs(t, err, service.ErrInvalid, "max=%d", n)
	}

	_, err := svc.Translate(ctx, testSession, service.TranslateInput{Text: "j", Culture: "c"}, nil)
	require.NoError(t, err)
	require.Equal(t, service.DefaultMaxAttempts, tr.lastMax)
	require.Equal(t, 3, svc.MaxAttempts())
}

func TestHumorService_MaxAttemptsLimitedByModelCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := newTranslatorStub(t, failedResult(), "only/one")
	svc := service.NewHumorService(tr, mock.NewMockTranslationRepository(ctrl))

	require.Equal(t, 1, svc.MaxAttempts())
	require.Equal(t, []string{"only/one"}, svc.Models())

	_, err := svc.Translate(context.Background(), testSession, service.TranslateInput{Text: "j", Culture: "c", MaxAttempts: 2}, nil)
	require.ErrorIs(t, err, service.ErrInvalid)
}

func TestHumorService_Translate_RequiresSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := service.NewHumorService(newTranslatorStub(t, successResult()), mock.NewMockTranslationRepository(ctrl))

	_, err := svc.Translate(context.Background(), nil, service.TranslateInput{Text: "j", Culture: "c"}, nil)
	require.ErrorIs(t, err, service.ErrUnauthenticated)

	_, err = svc.History(context.Background(), nil, 10)
	require.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestHumorService_Translate_DuplicateSubmissionsShareOneRun(t *testing.T) {
	db := testutil.NewTestDB(t)
	userID := testutil.SeedUser(t, db, "dup@example.com")
	records := repository.NewTranslationRepository(db)
	tr := newTranslatorStub(t, successResult())
	tr.gate = make(chan struct{})
	svc := service.NewHumorService(tr, records)
	sess := &service.Session{TokenID: "t", UserID: userID, Email: "dup@example.com"}

	in := service.TranslateInput{Text: "joke", Culture: "Gen Z", Save: true}
	var wg sync.WaitGroup
	results := make([]*service.TranslateResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Translate(context.Background(), sess, in, nil)
		}(i)
	}

	// Let both goroutines reach the in-flight group before releasing the run.
	require.Eventually(t, func() bool { return tr.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(tr.gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, int32(1), tr.calls.Load())
	history, err := svc.History(context.Background(), sess, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, results[0].RecordID, results[1].RecordID)
}

func TestHumorService_History(t *testing.T) {
	ctrl := gomock.NewController(t)
	records := mock.NewMockTranslationRepository(ctrl)
	svc := service.NewHumorService(newTranslatorStub(t, successResult()), records)
	ctx := context.Background()

	records.EXPECT().ListRecentByUser(ctx, int64(42), service.DefaultHistoryLimit).Return([]model.TranslationRecord{{ID: 1}}, nil)
	got, err := svc.History(ctx, testSession, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	records.EXPECT().ListRecentByUser(ctx, int64(42), service.MaxHistoryLimit).Return(nil, nil)
	_, err = svc.History(ctx, testSession, 1000)
	require.NoError(t, err)

	records.EXPECT().ListRecentByUser(ctx, int64(42), 5).Return(nil, errors.New("boom"))
	_, err = svc.History(ctx, testSession, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "list translations")
}

// slowRateLimitProvider answers 429 for v/A after a pause and accepts v/B.
type slowRateLimitProvider struct {
	hits atomic.Int32
}

func (p *slowRateLimitProvider) Name() string { return "slow" }

func (p *slowRateLimitProvider) Complete(ctx context.Context, model, prompt string, params inference.Params) (string, error) {
	p.hits.Add(1)
	if model == "v/A" {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "", &inference.StatusError{Provider: "slow", StatusCode: 429}
	}
	return acceptedJoke, nil
}

type progressRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *progressRecorder) AttemptStarted(index int, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "start "+model)
}

func (r *progressRecorder) AttemptFinished(a inference.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "done "+a.Model)
}

func (r *progressRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestHumorService_Translate_CancelledCallerDoesNotFailSharedRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	records := mock.NewMockTranslationRepository(ctrl)
	records.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(model.TranslationRecord{ID: 7}, nil)

	models, err := inference.NewModelList("v/A", "v/B")
	require.NoError(t, err)
	provider := &slowRateLimitProvider{}
	seq := inference.NewSequencer(provider, models, inference.SequencerConfig{AttemptTimeout: time.Second})
	svc := service.NewHumorService(seq, records)

	in := service.TranslateInput{Text: "joke", Culture: "Gen Z", MaxAttempts: 2, Save: true}
	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstProgress := &progressRecorder{}

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Translate(firstCtx, testSession, in, firstProgress)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return provider.hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		res *service.TranslateResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := svc.Translate(context.Background(), testSession, in, nil)
		second <- outcome{res, err}
	}()

	time.Sleep(60 * time.Millisecond)
	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	got := <-second
	require.NoError(t, got.err)
	require.True(t, got.res.OK())
	require.Equal(t, "v/B", got.res.Model)
	require.Len(t, got.res.Attempts, 2)
	require.Equal(t, inference.OutcomeRateLimited, got.res.Attempts[0].Outcome)
	require.Equal(t, inference.OutcomeSuccess, got.res.Attempts[1].Outcome)
	require.True(t, got.res.Saved)
	require.Equal(t, int32(2), provider.hits.Load())

	// The departed caller stopped receiving progress when it left.
	require.Equal(t, []string{"start v/A"}, firstProgress.snapshot())
}
