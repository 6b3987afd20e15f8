package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/neexbeast/trailweather/internal/journey"
)

var validate = validator.New()

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	svc   JourneyService
	cache WeatherCache
	log   *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies. A nil
// cache disables caching.
func NewHandlers(svc JourneyService, cache WeatherCache, log *slog.Logger) *Handlers {
	if cache == nil {
		cache = NoCache{}
	}
	return &Handlers{
		svc:   svc,
		cache: cache,
		log:   log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps the journey error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, journey.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, journey.ErrAlreadyActive), errors.Is(err, journey.ErrOutOfOrder):
		return http.StatusConflict
	case errors.Is(err, journey.ErrInvalidRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error. Domain errors carry their own message; anything
// else is logged and hidden behind a generic body.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(msg, "group", chi.URLParam(r, "group"), "err", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// decode reads an optional JSON body into v and validates it.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding request body: %w: %w", journey.ErrInvalidRange, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", journey.ErrInvalidRange, err)
	}
	return nil
}

// dayView is a day as the front end renders it. The notes and label are
// computed here so the presentation layer needs no rules of its own.
type dayView struct {
	journey.DailyWeather
	TemperatureLabel string `json:"temperature_label"`
	ColdFrontNote    string `json:"cold_front_note,omitempty"`
	HeatWaveNote     string `json:"heat_wave_note,omitempty"`
}

func newDayView(rec journey.DailyWeather) dayView {
	return dayView{
		DailyWeather:     rec,
		TemperatureLabel: rec.TemperatureLabel(),
		ColdFrontNote:    rec.ColdFront.Note(),
		HeatWaveNote:     rec.HeatWave.Note(),
	}
}

func newDayViews(recs []journey.DailyWeather) []dayView {
	out := make([]dayView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newDayView(rec))
	}
	return out
}

type startRequest struct {
	Season   string `json:"season" validate:"required"`
	Province string `json:"province" validate:"required"`
}

// StartJourney handles POST /api/v1/journeys/{group}.
func (h *Handlers) StartJourney(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	j, err := h.svc.StartJourney(r.Context(), chi.URLParam(r, "group"), req.Season, req.Province)
	if err != nil {
		h.fail(w, r, "start journey failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, j)
}

// GetJourney handles GET /api/v1/journeys/{group}.
func (h *Handlers) GetJourney(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.Journey(r.Context(), chi.URLParam(r, "group"))
	if err != nil {
		h.fail(w, r, "get journey failed", err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// EndJourney handles DELETE /api/v1/journeys/{group}.
// Deletes the journey and its days, then drops the cached days.
func (h *Handlers) EndJourney(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.EndJourney(r.Context(), chi.URLParam(r, "group"))
	if err != nil {
		h.fail(w, r, "end journey failed", err)
		return
	}

	if err := h.cache.Drop(r.Context(), j.ID); err != nil {
		h.log.Warn("cache drop failed", "group", j.Group, "journey_id", j.ID, "err", err)
	}

	writeJSON(w, http.StatusOK, j)
}

type stageRequest struct {
	Duration    int    `json:"duration" validate:"required,min=1,max=10"`
	DisplayMode string `json:"display_mode" validate:"omitempty,oneof=simple detailed"`
}

// ConfigureStage handles PUT /api/v1/journeys/{group}/stage.
func (h *Handlers) ConfigureStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	j, err := h.svc.ConfigureStage(r.Context(), chi.URLParam(r, "group"), req.Duration, req.DisplayMode)
	if err != nil {
		h.fail(w, r, "configure stage failed", err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// AdvanceDay handles POST /api/v1/journeys/{group}/days.
// Generates and commits one day, then caches it.
func (h *Handlers) AdvanceDay(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	rec, err := h.svc.AdvanceDay(r.Context(), group)
	if err != nil {
		h.fail(w, r, "advance day failed", err)
		return
	}

	h.cacheDays(r, group, rec)
	writeJSON(w, http.StatusCreated, newDayView(rec))
}

type advanceStageRequest struct {
	Days int `json:"days" validate:"omitempty,min=1,max=10"`
}

type stageResponse struct {
	Group     string    `json:"group"`
	Requested int       `json:"requested"`
	Days      []dayView `json:"days"`
	Error     string    `json:"error,omitempty"`
}

// AdvanceStage handles POST /api/v1/journeys/{group}/stages.
// A stage that fails part way answers 500 with the days that were committed.
func (h *Handlers) AdvanceStage(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	var req advanceStageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.AdvanceStage(r.Context(), group, req.Days)
	h.cacheDays(r, group, res.Days...)

	if err != nil {
		if len(res.Days) == 0 {
			h.fail(w, r, "advance stage failed", err)
			return
		}
		h.log.Error("advance stage stopped early", "group", group, "completed", len(res.Days), "err", err)
		writeJSON(w, http.StatusInternalServerError, stageResponse{
			Group:     res.Group,
			Requested: res.Requested,
			Days:      newDayViews(res.Days),
			Error:     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, stageResponse{
		Group:     res.Group,
		Requested: res.Requested,
		Days:      newDayViews(res.Days),
	})
}

// GetDay handles GET /api/v1/journeys/{group}/days/{day}.
// Cache hit → return. Store hit → cache + return. Neither → 404.
func (h *Handlers) GetDay(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil || day < 1 {
		writeError(w, http.StatusBadRequest, "day must be a positive integer")
		return
	}

	j, err := h.svc.Journey(r.Context(), group)
	if err != nil {
		h.fail(w, r, "get journey failed", err)
		return
	}

	cached, err := h.cache.Get(r.Context(), j.ID, day)
	if err != nil {
		h.log.Warn("cache get failed", "group", group, "day", day, "err", err)
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, newDayView(*cached))
		return
	}

	rec, err := h.svc.DailyWeather(r.Context(), group, day)
	if err != nil {
		h.fail(w, r, "get day failed", err)
		return
	}

	if err := h.cache.Set(r.Context(), j.ID, rec); err != nil {
		h.log.Warn("cache set failed after store hit", "group", group, "day", day, "err", err)
	}

	writeJSON(w, http.StatusOK, newDayView(rec))
}

// ListDays handles GET /api/v1/journeys/{group}/days?from=&to=.
// Both bounds are optional and default to the whole journey so far.
func (h *Handlers) ListDays(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	j, err := h.svc.Journey(r.Context(), group)
	if err != nil {
		h.fail(w, r, "get journey failed", err)
		return
	}

	from, to := 1, j.LastDay()
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "from must be an integer")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "to must be an integer")
			return
		}
	}
	if to > j.LastDay() {
		to = j.LastDay()
	}
	if to < from {
		writeJSON(w, http.StatusOK, []dayView{})
		return
	}

	cached, err := h.cache.GetRange(r.Context(), j.ID, from, to)
	if err != nil {
		h.log.Warn("cache range get failed", "group", group, "from", from, "to", to, "err", err)
	}
	if complete(cached) {
		out := make([]dayView, 0, len(cached))
		for _, rec := range cached {
			out = append(out, newDayView(*rec))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	recs, err := h.svc.ListDailyWeather(r.Context(), group, from, to)
	if err != nil {
		h.fail(w, r, "list days failed", err)
		return
	}

	if err := h.cache.Set(r.Context(), j.ID, recs...); err != nil {
		h.log.Warn("cache set failed after store hit", "group", group, "err", err)
	}

	writeJSON(w, http.StatusOK, newDayViews(recs))
}

func complete(recs []*journey.DailyWeather) bool {
	if len(recs) == 0 {
		return false
	}
	for _, rec := range recs {
		if rec == nil {
			return false
		}
	}
	return true
}

// cacheDays stores freshly committed days under the group's journey.
func (h *Handlers) cacheDays(r *http.Request, group string, recs ...journey.DailyWeather) {
	if len(recs) == 0 {
		return
	}
	j, err := h.svc.Journey(r.Context(), group)
	if err != nil {
		h.log.Warn("cache set skipped, journey lookup failed", "group", group, "err", err)
		return
	}
	if err := h.cache.Set(r.Context(), j.ID, recs...); err != nil {
		h.log.Warn("cache set failed after advance", "group", group, "err", err)
	}
}
