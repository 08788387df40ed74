package transactions

import (
	"context"
	"net/http"

	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/handlers/render"
	"github.com/chris/trustline/pkg/ledger"
	"github.com/chris/trustline/pkg/mapping"
	"github.com/chris/trustline/pkg/models"
	"github.com/google/uuid"
)

// Ledger is the transaction surface of the credit ledger.
type Ledger interface {
	DrawCredit(ctx context.Context, in ledger.DrawInput) (*models.Transaction, error)
	RecordRepayment(ctx context.Context, in ledger.RepaymentInput) (*models.Transaction, error)
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)
}

// TransactionsHandler holds the dependencies for transaction-related handlers.
type TransactionsHandler struct {
	Ledger Ledger
}

// NewTransactionsHandler creates a new TransactionsHandler.
func NewTransactionsHandler(l Ledger) *TransactionsHandler {
	return &TransactionsHandler{Ledger: l}
}

// DrawCredit records a credit purchase.
func (h *TransactionsHandler) DrawCredit(w http.ResponseWriter, r *http.Request) {
	var newTx api.NewTransaction
	if err := render.DecodeJSONBody(r, &newTx); err != nil {
		render.Error(w, r, err)
		return
	}

	tx, err := h.Ledger.DrawCredit(r.Context(), mapping.ToDomainDraw(&newTx))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, mapping.ToApiTransaction(tx))
}

// GetTransactionById retrieves a transaction by its ID.
func (h *TransactionsHandler) GetTransactionById(w http.ResponseWriter, r *http.Request, transactionID string) {
	if _, err := uuid.Parse(transactionID); err != nil {
		render.Error(w, r, render.ErrInvalidRequest.WithMessage("transaction id must be a UUID"))
		return
	}

	tx, err := h.Ledger.GetTransaction(r.Context(), transactionID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiTransaction(tx))
}

// RecordRepayment settles a transaction.
func (h *TransactionsHandler) RecordRepayment(w http.ResponseWriter, r *http.Request, transactionID string) {
	if _, err := uuid.Parse(transactionID); err != nil {
		render.Error(w, r, render.ErrInvalidRequest.WithMessage("transaction id must be a UUID"))
		return
	}

	var req api.NewRepayment
	if err := render.DecodeJSONBody(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	tx, err := h.Ledger.RecordRepayment(r.Context(), mapping.ToDomainRepayment(transactionID, &req))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiTransaction(tx))
}
