package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"saldo/internal/metrics"
	"saldo/internal/model"
	"saldo/internal/saga"
	"saldo/internal/service"
)

type Handler struct {
	svc service.SagaService
}

func NewHandler(svc service.SagaService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /users", h.RegisterUser)
	mux.HandleFunc("GET /balance", h.GetBalance)
	mux.HandleFunc("POST /topups", h.Topup)
	mux.HandleFunc("GET /topups/{id}", h.GetTopup)
	mux.HandleFunc("POST /withdraws", h.Withdraw)
	mux.HandleFunc("POST /transfers", h.Transfer)
	mux.HandleFunc("PUT /transfers/{id}", h.UpdateTransfer)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Email == "" {
		h.respondError(w, http.StatusBadRequest, "missing_email")
		return
	}
	user, err := h.svc.RegisterUser(r.Context(), req.Email, req.Firstname, req.Lastname)
	if err != nil {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.respondError(w, http.StatusBadRequest, "missing_params")
		return
	}
	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, balance)
}

func (h *Handler) Topup(w http.ResponseWriter, r *http.Request) {
	var req model.TopupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	res, err := h.svc.Topup(r.Context(), req)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

func (h *Handler) GetTopup(w http.ResponseWriter, r *http.Request) {
	topup, err := h.svc.GetTopup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, topup)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req model.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	res, err := h.svc.Withdraw(r.Context(), req)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req model.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	res, err := h.svc.Transfer(r.Context(), req)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

func (h *Handler) UpdateTransfer(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.TransferID = r.PathValue("id")
	res, err := h.svc.UpdateTransfer(r.Context(), req)
	if err != nil {
		h.respondError(w, statusFor(err), err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// statusFor maps the saga error taxonomy onto HTTP statuses. An inconsistent
// saga is a plain 500: the alerting happened inside the coordinator, the
// caller only learns the operation did not cleanly succeed.
func statusFor(err error) int {
	switch {
	case errors.Is(err, saga.ErrUserNotFound),
		errors.Is(err, saga.ErrBalanceNotFound),
		errors.Is(err, saga.ErrTransferNotFound),
		errors.Is(err, saga.ErrTopupNotFound):
		return http.StatusNotFound
	case errors.Is(err, saga.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, saga.ErrInvalidAmount),
		errors.Is(err, saga.ErrInvalidMethod),
		errors.Is(err, saga.ErrAmountTooLarge),
		errors.Is(err, saga.ErrSelfTransfer):
		return http.StatusBadRequest
	case errors.Is(err, saga.ErrBalanceExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
