package controllers

import (
	"context"
	"errors"
	"github.com/adamlounds/weather-diary/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxBodyBytes bounds diary text read from request bodies.
const maxBodyBytes = 1 << 20

var validate = validator.New()

type DiaryService interface {
	CreateDiary(ctx context.Context, date time.Time, text string) (*models.DiaryEntry, error)
	DeleteDiary(ctx context.Context, date time.Time) (int64, error)
	ReadDiaries(ctx context.Context, startDate, endDate time.Time) ([]models.DiaryEntry, error)
	ReadDiary(ctx context.Context, date time.Time) ([]models.DiaryEntry, error)
	UpdateDiary(ctx context.Context, date time.Time, text string) (*models.DiaryEntry, error)
}

type DiaryController struct {
	DiaryService
}

type DiaryEntryResponse struct {
	ID          string  `json:"id"`          // ulid
	Date        string  `json:"date"`        // yyyy-MM-dd
	Condition   string  `json:"condition"`   // "Clouds"
	Icon        string  `json:"icon"`        // "04d"
	Temperature float64 `json:"temperature"` // in configured units
	Text        string  `json:"text"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dateQuery struct {
	Date time.Time `validate:"required"`
}

type rangeQuery struct {
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required,gtefield=StartDate"`
}

// Routes mounts the diary endpoints on r.
func (c DiaryController) Routes(r chi.Router) {
	r.Post("/create/diary", c.CreateDiary)
	r.Delete("/delete/diary", c.DeleteDiary)
	r.Get("/read/diaries", c.ReadDiaries)
	r.Get("/read/diary", c.ReadDiary)
	r.Put("/update/diary", c.UpdateDiary)
}

func (c DiaryController) CreateDiary(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}
	text, ok := readText(w, r)
	if !ok {
		return
	}

	if _, err := c.DiaryService.CreateDiary(r.Context(), date, text); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (c DiaryController) DeleteDiary(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}

	if _, err := c.DiaryService.DeleteDiary(r.Context(), date); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (c DiaryController) ReadDiaries(w http.ResponseWriter, r *http.Request) {
	var q rangeQuery
	var ok bool
	if q.StartDate, ok = dateParam(w, r, "startDate"); !ok {
		return
	}
	if q.EndDate, ok = dateParam(w, r, "endDate"); !ok {
		return
	}
	if err := validate.Struct(q); err != nil {
		renderBadRequest(w, r, "endDate must not be before startDate")
		return
	}

	entries, err := c.DiaryService.ReadDiaries(r.Context(), q.StartDate, q.EndDate)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderEntryList(w, r, entries)
}

func (c DiaryController) ReadDiary(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}

	entries, err := c.DiaryService.ReadDiary(r.Context(), date)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderEntryList(w, r, entries)
}

func (c DiaryController) UpdateDiary(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}
	text, ok := readText(w, r)
	if !ok {
		return
	}

	if _, err := c.DiaryService.UpdateDiary(r.Context(), date, text); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func dateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	date, err := models.ParseDate(raw)
	if err == nil {
		err = validate.Struct(dateQuery{Date: date})
	}
	if err != nil {
		renderBadRequest(w, r, name+" must be a yyyy-MM-dd date")
		return time.Time{}, false
	}
	return date, true
}

func readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			renderBadRequest(w, r, "diary text is too large")
			return "", false
		}
		renderBadRequest(w, r, "cannot read request body")
		return "", false
	}
	return string(body), true
}

func renderEntryList(w http.ResponseWriter, r *http.Request, entries []models.DiaryEntry) {
	resp := make([]DiaryEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, DiaryEntryResponse{
			ID:          e.ID,
			Date:        models.DateKey(e.Date),
			Condition:   e.Condition,
			Icon:        e.Icon,
			Temperature: e.Temperature,
			Text:        e.Text,
		})
	}
	render.JSON(w, r, resp)
}

func renderBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Code: "bad_request", Message: msg})
}

// renderError maps service errors onto status codes. Anything unrecognised is
// logged and reported as an internal error without detail.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var parseErr *models.ParseError
	var status int
	var resp ErrorResponse

	switch {
	case errors.Is(err, models.ErrInvalidDate):
		status, resp = http.StatusBadRequest, ErrorResponse{Code: "invalid_date", Message: "date is out of range"}
	case errors.Is(err, models.ErrNotFound):
		status, resp = http.StatusNotFound, ErrorResponse{Code: "not_found", Message: "no diary for that date"}
	case errors.As(err, &parseErr):
		slogctx.FromCtx(r.Context()).Warn("weather unavailable", slog.Any("error", err))
		status, resp = http.StatusBadGateway, ErrorResponse{Code: "weather_unavailable", Message: "cannot get current weather"}
	default:
		slogctx.FromCtx(r.Context()).Error("diary request failed", slog.Any("error", err))
		status, resp = http.StatusInternalServerError, ErrorResponse{Code: "internal_error", Message: "internal server error"}
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
