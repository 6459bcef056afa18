package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/services/sentiment"
	"MarketSignal/internal/usecase"
	xhttp "MarketSignal/pkg/http"
	applogger "MarketSignal/pkg/logger"
)

// DashboardHandler serves the dashboard page, its JSON API and the live feed.
type DashboardHandler struct {
	logger *applogger.Logger
	dash   *usecase.Dashboard
	hub    *LiveHub
}

func NewDashboardHandler(logger *applogger.Logger, dash *usecase.Dashboard, hub *LiveHub) *DashboardHandler {
	h := &DashboardHandler{logger: logger, dash: dash, hub: hub}
	hub.OnConnect(func(c echo.Context) (interface{}, error) {
		s, err := dash.Latest(c.Request().Context())
		if err != nil {
			return nil, err
		}
		return usecase.Snapshot{Type: usecase.SnapshotInitial, Data: s}, nil
	})
	return h
}

func (h *DashboardHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/", h.Page)
	g.GET("/ws", h.hub.Serve)

	api := g.Group("/api")
	api.GET("/indices", h.Indices)
	api.GET("/headlines", h.Headlines)
	api.GET("/signal", h.DailySignal)
	api.POST("/social", h.Social)
	api.GET("/signals/history", h.History)
}

// Page renders the HTML dashboard. An optional "social" query runs the keyword panel.
func (h *DashboardHandler) Page(c echo.Context) error {
	req := &models.DailySignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	data := pageData{
		Symbol:  req.Symbol,
		Index:   h.dash.ResolveTarget("", req.Index),
		Indices: h.dash.Indices(),
	}
	s, err := h.dash.DailySignal(ctx, req.Symbol, req.Index)
	if err != nil {
		h.logger.Error("daily signal error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	data.Signal = s

	if text := strings.TrimSpace(c.QueryParam("social")); text != "" {
		data.SocialText = text
		social, err := h.dash.Social(ctx, text)
		if err != nil {
			h.logger.Warn("social signal error", applogger.Error(err))
			data.SocialError = mapError(err).Message
		} else {
			data.Social = social
		}
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		h.logger.Error("render dashboard", applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *DashboardHandler) Indices(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.dash.Indices())
}

func (h *DashboardHandler) Headlines(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, h.dash.Headlines(c.Request().Context()))
}

func (h *DashboardHandler) DailySignal(c echo.Context) error {
	req := &models.DailySignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.dash.DailySignal(c.Request().Context(), req.Symbol, req.Index)
	if err != nil {
		h.logger.Error("daily signal error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardHandler) Social(c echo.Context) error {
	req := &models.SocialSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.dash.Social(c.Request().Context(), req.Text)
	if err != nil {
		h.logger.Error("social signal error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since := time.Now().Add(-7 * 24 * time.Hour)
	if req.Since != "" {
		t, ok := xhttp.ParseTime(req.Since)
		if !ok {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code:    "ERR_TIME",
				Field:   "since",
				Message: "since must be an RFC 3339 time, a date or unix seconds",
			}})
		}
		since = t
	}

	res, err := h.dash.History(c.Request().Context(), req.Target, since, req.Limit)
	if err != nil {
		h.logger.Error("history error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

// mapError turns use case failures into API errors.
func mapError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, usecase.ErrHistoryUnavailable):
		return xhttp.ServiceUnavailableError("signal history is not enabled").WithError(err)
	case errors.Is(err, sentiment.ErrEmptyText):
		return xhttp.UnprocessableError("text", "text is empty").WithError(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return xhttp.ServiceUnavailableError("request timed out").WithError(err)
	case errors.Is(err, usecase.ErrClassifierUnavailable):
		return xhttp.ServiceUnavailableError("sentiment classifier unavailable").WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
