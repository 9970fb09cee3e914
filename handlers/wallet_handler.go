package handlers

import (
	"net/http"
	"strconv"

	"github.com/bracketworks/arena/services"
)

type WalletHandler struct {
	walletService *services.WalletService
}

func NewWalletHandler(walletService *services.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	wallet, err := h.walletService.GetByUserID(r.Context(), actorID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet, nil)
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.walletService.ListTransactions(r.Context(), actorID, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"transactions": transactions}, nil)
}

type moneyMovementInput struct {
	Amount         int64   `json:"amount"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	var input moneyMovementInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	txn, err := h.walletService.Deposit(r.Context(), actorID, input.Amount, input.IdempotencyKey)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn, nil)
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	var input moneyMovementInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	txn, err := h.walletService.Withdraw(r.Context(), actorID, input.Amount, input.IdempotencyKey)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn, nil)
}
