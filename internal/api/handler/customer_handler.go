package handler

import (
	"fmt"
	"lending-backoffice/internal/api/handler/dto"
	"lending-backoffice/internal/domain/customer"
	"lending-backoffice/internal/domain/loan"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"net/http"
	"strings"
)

type CustomerHandler struct {
	service customer.CustomerService
	loans   loan.LoanService
	logger  *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, loans loan.LoanService, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if loans == nil {
		panic("loan service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service: s,
		loans:   loans,
		logger:  l.With("component", "CustomerHandler"),
	}
}

// CreateCustomer handles POST /customers
// @Summary Create a new customer
// @Description Creates a borrower under a tenant.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomerRequest true "Customer creation request"
// @Success 201 {object} dto.CustomerResponse "Customer successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload (e.g., empty name/email)"
// @Failure 500 {object} dto.ErrorResponse "Internal server error during creation"
// @Router /customers [post]
// @Security BearerAuth
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create customer request")

	var req dto.CreateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Validation failed", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.CreateCustomer(r.Context(), req.TenantID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Email))
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to create customer", slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := dto.NewCustomerResponse(created)
	h.logger.InfoContext(r.Context(), "Customer created successfully", slog.String("customerID", resp.CustomerID))
	respondJSON(w, http.StatusCreated, resp)
}

// GetCustomer handles GET /customers/{customerID}
// @Summary Retrieve customer details
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 200 {object} dto.CustomerResponse "Customer details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID format"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [get]
// @Security BearerAuth
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getIDFromURL(r, "customerID")
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get customer ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}

	cust, err := h.service.GetCustomer(r.Context(), customerID)
	if err != nil {
		h.logger.Log(r.Context(), logLevel(err), "Service failed to get customer", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(cust))
}

// GetCustomerLoan handles GET /customers/{customerID}/loan
// @Summary Customer portal loan view
// @Description Returns the customer's current loan together with the amount due today.
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 200 {object} dto.CustomerLoanResponse "Loan and repayment position"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID format"
// @Failure 404 {object} dto.ErrorResponse "Customer not found or has no loan"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID}/loan [get]
// @Security BearerAuth
func (h *CustomerHandler) GetCustomerLoan(w http.ResponseWriter, r *http.Request) {
	customerID, err := getIDFromURL(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}
	logCtx := h.logger.With(slog.Int64("customerID", customerID))

	cust, err := h.service.GetCustomer(r.Context(), customerID)
	if err != nil {
		logCtx.Log(r.Context(), logLevel(err), "Service failed to get customer", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if cust.LoanID == nil {
		respondError(w, fmt.Errorf("%w: customer %d has no loan", apperrors.ErrNotFound, customerID))
		return
	}

	l, err := h.loans.GetLoan(r.Context(), *cust.LoanID)
	if err != nil {
		logCtx.Log(r.Context(), logLevel(err), "Service failed to get customer loan", slog.Any("error", err))
		respondError(w, err)
		return
	}
	repayment, err := h.loans.GetRepayment(r.Context(), l.ID, nil)
	if err != nil {
		logCtx.Log(r.Context(), logLevel(err), "Service failed to compute repayment", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.CustomerLoanResponse{
		Customer:  dto.NewCustomerResponse(cust),
		Loan:      dto.NewLoanResponse(l),
		Repayment: dto.NewRepaymentResponse(repayment),
	})
}
