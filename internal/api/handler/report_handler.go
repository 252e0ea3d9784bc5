package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"lending-backoffice/internal/api/handler/dto"
	"lending-backoffice/internal/domain/accrual"
	"log/slog"
	"net/http"
	"time"
)

type CSVExporter interface {
	Export(ctx context.Context, w io.Writer, asOf time.Time) (int, error)
}

type ReportHandler struct {
	exporter CSVExporter
	logger   *slog.Logger
	now      func() time.Time
}

func NewReportHandler(e CSVExporter, l *slog.Logger) *ReportHandler {
	return &ReportHandler{
		exporter: e,
		logger:   l.With("component", "ReportHandler"),
		now:      time.Now,
	}
}

// CreditBureau handles GET /reports/credit-bureau
// @Summary Credit bureau export
// @Description CSV with one row per loan valued at asOf (default today). Closed loans are valued at their last collection date.
// @Tags Reports
// @Produce text/csv
// @Param asOf query string false "Reference date (YYYY-MM-DD)"
// @Success 200 {string} string "CSV file"
// @Failure 400 {object} dto.ErrorResponse "Invalid date"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /reports/credit-bureau [get]
// @Security BearerAuth
func (h *ReportHandler) CreditBureau(w http.ResponseWriter, r *http.Request) {
	asOfParam, err := parseAsOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	asOf := accrual.Day(h.now())
	if asOfParam != nil {
		asOf = *asOfParam
	}

	var buf bytes.Buffer
	rows, err := h.exporter.Export(r.Context(), &buf, asOf)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Credit bureau export failed", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Credit bureau export served", slog.Int("rows", rows))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="credit-bureau-%s.csv"`, asOf.Format(dto.DateLayout)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
