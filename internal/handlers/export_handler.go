package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/services"
)

// ExportHandler serves transaction exports.
type ExportHandler struct {
	exportService   services.ExportServicer
	defaultCurrency string
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exportService services.ExportServicer, defaultCurrency string) *ExportHandler {
	return &ExportHandler{exportService: exportService, defaultCurrency: defaultCurrency}
}

// ExportTransactions streams the matching transactions as a CSV or JSON
// download. The search filter parameters are the same as the search endpoint;
// "format" selects the encoding and defaults to csv.
func (h *ExportHandler) ExportTransactions(c *gin.Context) {
	filter, err := buildSearchFilter(c, h.defaultCurrency)
	if err != nil {
		respondWithError(c, err)
		return
	}

	format := c.DefaultQuery("format", "csv")
	stamp := time.Now().UTC().Format("2006-01-02")

	switch format {
	case "csv":
		data, err := h.exportService.ExportCSV(filter)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="transactions-`+stamp+`.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
	case "json":
		data, err := h.exportService.ExportJSON(filter)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="transactions-`+stamp+`.json"`)
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	default:
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "format must be csv or json"))
	}
}

// ImportTransactions ingests a CSV or JSON file of transactions uploaded as
// the "file" form field. Rows that cannot be applied are reported per row;
// the valid rest of the file still lands.
func (h *ExportHandler) ImportTransactions(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file upload is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "cannot read upload: "+err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "cannot read upload: "+err.Error()))
		return
	}

	var result *services.ImportResult
	switch {
	case strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".json"):
		result, err = h.exportService.ImportJSON(data)
	default:
		result, err = h.exportService.ImportCSV(data)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
