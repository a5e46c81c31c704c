package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"humormapper/internal/model"
	"humormapper/internal/service"
	"humormapper/internal/service/inference"
)

// failureTips is shown when every attempted model failed.
var failureTips = []string{
	"Wait 5-10 minutes and try again",
	"Try a shorter or simpler joke",
	"Reduce the number of models to try",
	"Free AI models often get busy during peak times",
}

type HumorHandler struct {
	service  service.HumorService
	renderer *Renderer
}

func NewHumorHandler(service service.HumorService, renderer *Renderer) *HumorHandler {
	return &HumorHandler{service: service, renderer: renderer}
}

// Request/Response types

type translateRequest struct {
	Text        string `json:"text"`
	Culture     string `json:"culture"`
	MaxAttempts int    `json:"maxAttempts"`
	Save        *bool  `json:"save"`
}

type attemptResponse struct {
	Index     int    `json:"index"`
	Model     string `json:"model"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
	Summary   string `json:"summary"`
}

type translateResponse struct {
	Text      string            `json:"text"`
	HTML      string            `json:"html"`
	Model     string            `json:"model"`
	ModelName string            `json:"modelName"`
	Attempts  []attemptResponse `json:"attempts"`
	Saved     bool              `json:"saved"`
	SaveError string            `json:"saveError,omitempty"`
	Tips      []string          `json:"tips,omitempty"`
}

type translationResponse struct {
	ID             string `json:"id"`
	OriginalText   string `json:"originalText"`
	TargetCulture  string `json:"targetCulture"`
	TranslatedText string `json:"translatedText"`
	HTML           string `json:"html"`
	ModelUsed      string `json:"modelUsed"`
	CreatedAt      string `json:"createdAt"`
}

type modelsResponse struct {
	Models             []string `json:"models"`
	MaxAttempts        int      `json:"maxAttempts"`
	DefaultMaxAttempts int      `json:"defaultMaxAttempts"`
}

type attemptStartedEvent struct {
	Index int    `json:"index"`
	Model string `json:"model"`
}

func (h *HumorHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/translate", h.Translate)
	g.POST("/translate/stream", h.TranslateStream)
	g.GET("/translations", h.ListTranslations)
	g.GET("/models", h.ListModels)
}

// Translate adapts a joke for a target culture.
// @Summary Translate humor
// @Description Try up to maxAttempts models in priority order and return the first accepted adaptation with the attempt log. When every model fails the response is 200 with empty text, the attempt log and tips.
// @Tags humor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body translateRequest true "Joke and target culture"
// @Success 200 {object} translateResponse
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Router /translate [post]
func (h *HumorHandler) Translate(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	res, err := h.service.Translate(c.Request().Context(), sessionFrom(c), req.input(), nil)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, h.toTranslateResponse(res))
}

// TranslateStream is Translate with per-attempt progress as server-sent events.
// @Summary Translate humor with progress
// @Description Same as /translate but streams "attempt" and "attempt-result" events while models are tried, then a final "result" event carrying the translate response.
// @Tags humor
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param request body translateRequest true "Joke and target culture"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Router /translate/stream [post]
func (h *HumorHandler) TranslateStream(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	stream := &eventStream{c: c}
	res, err := h.service.Translate(c.Request().Context(), sessionFrom(c), req.input(), stream)
	if err != nil {
		if !stream.started {
			return writeServiceError(c, err)
		}
		stream.send("error", errorResponse{Error: err.Error()})
		return nil
	}

	stream.send("result", h.toTranslateResponse(res))
	return nil
}

// ListTranslations returns the caller's saved translations.
// @Summary List saved translations
// @Description Most recent saved translations of the signed-in user, newest first
// @Tags humor
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max items (default 10, max 50)"
// @Success 200 {array} translationResponse
// @Failure 401 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /translations [get]
func (h *HumorHandler) ListTranslations(c echo.Context) error {
	records, err := h.service.History(c.Request().Context(), sessionFrom(c), parseLimitParam(c, "limit"))
	if err != nil {
		return writeServiceError(c, err)
	}

	resp := make([]translationResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, h.toTranslationResponse(rec))
	}
	return c.JSON(http.StatusOK, resp)
}

// ListModels returns the model priority list.
// @Summary List models
// @Description Models tried in order, and the allowed attempt budget
// @Tags humor
// @Produce json
// @Security BearerAuth
// @Success 200 {object} modelsResponse
// @Router /models [get]
func (h *HumorHandler) ListModels(c echo.Context) error {
	maxAttempts := h.service.MaxAttempts()
	def := service.DefaultMaxAttempts
	if def > maxAttempts {
		def = maxAttempts
	}
	return c.JSON(http.StatusOK, modelsResponse{
		Models:             h.service.Models(),
		MaxAttempts:        maxAttempts,
		DefaultMaxAttempts: def,
	})
}

func (r translateRequest) input() service.TranslateInput {
	save := true
	if r.Save != nil {
		save = *r.Save
	}
	return service.TranslateInput{
		Text:        r.Text,
		Culture:     r.Culture,
		MaxAttempts: r.MaxAttempts,
		Save:        save,
	}
}

func (h *HumorHandler) toTranslateResponse(res *service.TranslateResult) translateResponse {
	resp := translateResponse{
		Text:      res.Text,
		Model:     res.Model,
		Attempts:  toAttemptResponses(res.Attempts),
		Saved:     res.Saved,
		SaveError: res.SaveError,
	}
	if res.OK() {
		resp.HTML = h.renderer.Render(res.Text)
		resp.ModelName = inference.ShortModelName(res.Model)
	} else {
		resp.Tips = failureTips
	}
	return resp
}

func (h *HumorHandler) toTranslationResponse(rec model.TranslationRecord) translationResponse {
	return translationResponse{
		ID:             fmt.Sprintf("%d", rec.ID),
		OriginalText:   rec.OriginalText,
		TargetCulture:  rec.TargetCulture,
		TranslatedText: rec.TranslatedText,
		HTML:           h.renderer.Render(rec.TranslatedText),
		ModelUsed:      rec.ModelUsed,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAttemptResponses(attempts []inference.Attempt) []attemptResponse {
	out := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, toAttemptResponse(a))
	}
	return out
}

func toAttemptResponse(a inference.Attempt) attemptResponse {
	return attemptResponse{
		Index:     a.Index,
		Model:     a.Model,
		Outcome:   string(a.Outcome),
		Detail:    a.Detail,
		LatencyMs: a.LatencyMs,
		Summary:   a.String(),
	}
}

// eventStream writes sequencer progress as server-sent events. Headers are
// sent lazily so validation errors can still be returned as JSON.
type eventStream struct {
	c       echo.Context
	started bool
	closed  bool
}

func (s *eventStream) AttemptStarted(index int, model string) {
	s.send("attempt", attemptStartedEvent{Index: index, Model: model})
}

func (s *eventStream) AttemptFinished(a inference.Attempt) {
	s.send("attempt-result", toAttemptResponse(a))
}

func (s *eventStream) send(event string, payload any) {
	if s.closed {
		return
	}
	res := s.c.Response()
	if !s.started {
		res.Header().Set("Content-Type", "text/event-stream")
		res.Header().Set("Cache-Control", "no-cache")
		res.Header().Set("Connection", "keep-alive")
		res.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.c.Logger().Errorf("encode %s event: %v", event, err)
		return
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		// Client went away; the translation itself keeps running.
		s.closed = true
		return
	}
	res.Flush()
}
