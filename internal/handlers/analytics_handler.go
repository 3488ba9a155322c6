package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/period"
	"finledger/internal/services"
)

// AnalyticsHandler handles dashboard and trend requests.
type AnalyticsHandler struct {
	analyticsService services.AnalyticsServicer
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService services.AnalyticsServicer) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// refDate reads the optional "date" query parameter, defaulting to now.
func refDate(c *gin.Context) (time.Time, error) {
	if v := c.Query("date"); v != "" {
		return parseDate(v)
	}
	return time.Now().UTC(), nil
}

// GetDashboard returns aggregates over the trailing 30 days.
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	ref, err := refDate(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	stats, err := h.analyticsService.Dashboard(ref)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetTrends returns bucketed income/expense series.
func (h *AnalyticsHandler) GetTrends(c *gin.Context) {
	var query struct {
		Period string `form:"period" binding:"omitempty,trend_period"`
		Months int    `form:"months" binding:"omitempty,min=1,max=36"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if query.Period == "" {
		query.Period = string(period.Monthly)
	}

	ref, err := refDate(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	points, err := h.analyticsService.Trends(period.Period(query.Period), query.Months, ref)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trends": points})
}

// GetForecast projects recurring income and expenses per month.
func (h *AnalyticsHandler) GetForecast(c *gin.Context) {
	months := 3
	if v := c.Query("months"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 24 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "months must be between 1 and 24"))
			return
		}
		months = parsed
	}

	ref, err := refDate(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	points, err := h.analyticsService.Forecast(months, ref)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"forecast": points})
}

// GetMonthlyComparison returns per-month income versus expenses with the
// savings rate, newest first.
func (h *AnalyticsHandler) GetMonthlyComparison(c *gin.Context) {
	var query struct {
		Months int `form:"months" binding:"omitempty,min=1,max=36"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	ref, err := refDate(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	points, err := h.analyticsService.MonthlyComparison(query.Months, ref)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"months": points})
}

// GetTopExpenses returns the largest expenses of a trailing window.
func (h *AnalyticsHandler) GetTopExpenses(c *gin.Context) {
	var query struct {
		Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
		Days  int `form:"days" binding:"omitempty,min=1,max=365"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	ref, err := refDate(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	items, err := h.analyticsService.TopExpenses(query.Limit, query.Days, ref)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expenses": items})
}

// GetHeatmap returns the per-day expense distribution of one month.
func (h *AnalyticsHandler) GetHeatmap(c *gin.Context) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())

	if v := c.Query("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1970 || parsed > 9999 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid year"))
			return
		}
		year = parsed
	}
	if v := c.Query("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid month"))
			return
		}
		month = parsed
	}

	heatmap, err := h.analyticsService.Heatmap(year, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, heatmap)
}
