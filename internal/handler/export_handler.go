package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/service"
	"github.com/noah-isme/clinic-agenda-api/pkg/response"
)

type exportService interface {
	Occurrences(ctx context.Context, ownerID string, query dto.OccurrenceQuery, format service.ExportFormat) (*service.ExportResult, error)
}

// ExportHandler streams agenda exports.
type ExportHandler struct {
	exports  exportService
	location *time.Location
}

// NewExportHandler constructs ExportHandler. Plain-date bounds are read in loc.
func NewExportHandler(exports exportService, loc *time.Location) *ExportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportHandler{exports: exports, location: loc}
}

// Agenda godoc
// @Summary Export the agenda of a window
// @Tags Export
// @Produce octet-stream
// @Param start query string true "Window start"
// @Param end query string true "Window end"
// @Param patient_id query string false "Restrict to one patient"
// @Param format query string false "csv, pdf or ics" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /occurrences/export [get]
func (h *ExportHandler) Agenda(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	query, err := parseWindowQuery(c, h.location)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	result, err := h.exports.Occurrences(c.Request.Context(), ownerID, query, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Content)
}
