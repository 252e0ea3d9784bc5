package handler

import (
	"fmt"
	"lending-backoffice/internal/api/handler/dto"
	"lending-backoffice/internal/domain/accrual"
	"lending-backoffice/internal/domain/loan"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"net/http"
	"time"
)

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
	now     func() time.Time
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	if s == nil {
		panic("loan service cannot be nil")
	}
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
		now:     time.Now,
	}
}

// CreateLoan handles the creation of a new loan.
//
// @Summary Create a new loan
// @Description Disburses a loan to an existing customer. The repayment date is the disbursal date plus the tenure in days. A customer can hold only one loan that is not closed.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan creation request payload"
// @Success 201 {object} dto.LoanResponse "Loan successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or validation error"
// @Failure 409 {object} dto.ErrorResponse "Customer already has an open loan"
// @Failure 422 {object} dto.ErrorResponse "Loan terms rejected"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	params, err := req.ToParams()
	if err != nil {
		h.logger.WarnContext(r.Context(), "Validation failed", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.CreateLoan(r.Context(), params)
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to create loan", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Loan created", slog.Int64("loanID", created.ID))
	respondJSON(w, http.StatusCreated, dto.NewLoanResponse(created))
}

// GetLoan retrieves the details of a specific loan.
//
// @Summary Retrieve loan details
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Loan details successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	l, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to get loan", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}

// GetRepayment returns the amount currently due on a loan.
//
// @Summary Current repayment amount
// @Description Values the loan as of the given date (default today): outstanding principal, ordinary interest, penalty interest and the total due. Closed loans are valued at their last collection date.
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param asOf query string false "Reference date (YYYY-MM-DD)"
// @Success 200 {object} dto.RepaymentResponse "Repayment position"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID or date"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 422 {object} dto.ErrorResponse "Loan cannot be valued at that date"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/repayment [get]
// @Security BearerAuth
func (h *LoanHandler) GetRepayment(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		respondError(w, err)
		return
	}

	repayment, err := h.service.GetRepayment(r.Context(), loanID, asOf)
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to compute repayment", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewRepaymentResponse(repayment))
}

// RecordCollection records a payment against a loan.
//
// @Summary Record a collection
// @Description Records a payment. The payment is applied to penalty, then interest, then principal. The loan is closed when nothing remains due.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.RecordCollectionRequest true "Collection payload"
// @Success 201 {object} dto.CollectionResultResponse "Collection recorded"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID or payload"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan already closed"
// @Failure 422 {object} dto.ErrorResponse "Collection date before disbursal"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/collections [post]
// @Security BearerAuth
func (h *LoanHandler) RecordCollection(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.RecordCollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	amount, collectedDate, err := req.Parse(accrual.Day(h.now()))
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	result, err := h.service.RecordCollection(r.Context(), loanID, amount, collectedDate)
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to record collection", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Collection recorded", slog.Int64("loanID", loanID), slog.Bool("loanClosed", result.LoanClosed))
	respondJSON(w, http.StatusCreated, dto.NewCollectionResultResponse(result))
}

// ListCollections returns the payment ledger of a loan.
//
// @Summary List collections
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {array} dto.CollectionResponse "Collections, most recent first"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/collections [get]
// @Security BearerAuth
func (h *LoanHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	collections, err := h.service.ListCollections(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to list collections", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := make([]dto.CollectionResponse, len(collections))
	for i := range collections {
		resp[i] = dto.NewCollectionResponse(&collections[i])
	}
	respondJSON(w, http.StatusOK, resp)
}

// QuoteWaiver splits a settlement offer into the amounts to be waived.
//
// @Summary Quote a settlement waiver
// @Description Computes how much of the amount due would be written off if the borrower settled for the given amount. Penalty is waived first, then interest, then principal.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.WaiverQuoteRequest true "Settlement offer"
// @Success 200 {object} dto.WaiverQuoteResponse "Waiver breakdown"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID or settlement amount"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan already closed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/waiver-quote [post]
// @Security BearerAuth
func (h *LoanHandler) QuoteWaiver(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.WaiverQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	settlement, asOf, err := req.Parse()
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	quote, err := h.service.QuoteWaiver(r.Context(), loanID, settlement, asOf)
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to quote waiver", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewWaiverQuoteResponse(quote))
}
