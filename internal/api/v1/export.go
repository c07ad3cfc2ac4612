package v1

import (
	"net/http"

	"github.com/cabfleet/cabfleet/internal/api/dto"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/logger"
	"github.com/cabfleet/cabfleet/internal/service"
	"github.com/gin-gonic/gin"
)

type ExportHandler struct {
	numbering service.NumberingService
	snapshots service.SnapshotService
	log       *logger.Logger
}

func NewExportHandler(numbering service.NumberingService, snapshots service.SnapshotService, log *logger.Logger) *ExportHandler {
	return &ExportHandler{numbering: numbering, snapshots: snapshots, log: log}
}

// CreateExport builds the export snapshot for a window: assigns any missing
// receipt numbers, computes the dataset and returns the canonical snapshot
// with its SHA-256 fingerprint. The rendering collaborator consumes the
// response to produce the archival PDF/JSON artifacts.
func (h *ExportHandler) CreateExport(c *gin.Context) {
	var req dto.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Errorw("failed to bind export request", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.snapshots.BuildSnapshot(c.Request.Context(), req)
	if err != nil {
		h.log.Errorw("failed to build export snapshot", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// PreviewExport runs the same pipeline without any archival intent. Safe to
// call repeatedly, numbering is idempotent.
func (h *ExportHandler) PreviewExport(c *gin.Context) {
	var req dto.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.snapshots.BuildSnapshot(c.Request.Context(), req)
	if err != nil {
		h.log.Errorw("failed to preview export snapshot", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// AssignNumbers runs only the receipt numbering step for a window
func (h *ExportHandler) AssignNumbers(c *gin.Context) {
	var req dto.AssignNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	summary, err := h.numbering.AssignReceiptNumbers(c.Request.Context(), req)
	if err != nil {
		h.log.Errorw("failed to assign receipt numbers", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAssignNumbersResponse(summary))
}
