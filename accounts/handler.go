package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"bank-transfer/accounts/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service é o que o handler precisa da camada application.
type Service interface {
	CreateAccount(ctx context.Context, id string, balance decimal.Decimal) (domain.Account, error)
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	Deposit(ctx context.Context, id string, amount decimal.Decimal) (domain.Account, error)
	Withdraw(ctx context.Context, id string, amount decimal.Decimal) (domain.Account, error)
	Transfer(ctx context.Context, debtorID, creditorID string, amount decimal.Decimal) (domain.TransferResult, error)
}

type CreateAccountRequest struct {
	AccountID string          `json:"accountId" validate:"required,max=64"`
	Balance   decimal.Decimal `json:"balance"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	AccountFrom string          `json:"accountFrom" validate:"required,max=64"`
	AccountTo   string          `json:"accountTo" validate:"required,max=64"`
	Amount      decimal.Decimal `json:"amount"`
}

type Handler struct {
	svc      Service
	logger   *zap.Logger
	validate *validator.Validate
	// Count, se definido, aparece no /health.
	Count func() int
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger, validate: validator.New()}
}

// Routes registra as rotas no mux (padrões do net/http >= 1.22).
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /v1/accounts", h.createAccount)
	mux.HandleFunc("GET /v1/accounts/{id}", h.getAccount)
	mux.HandleFunc("POST /v1/accounts/{id}/deposit", h.deposit)
	mux.HandleFunc("POST /v1/accounts/{id}/withdraw", h.withdraw)
	mux.HandleFunc("POST /v1/transfers", h.transfer)
	return mux
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.Count != nil {
		body["accounts"] = h.Count()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	acc, err := h.svc.CreateAccount(r.Context(), req.AccountID, req.Balance)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	acc, err := h.svc.Deposit(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	acc, err := h.svc.Withdraw(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Transfer(r.Context(), req.AccountFrom, req.AccountTo, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

const maxBodyBytes = 1 << 20

// decode lê exatamente um valor JSON e roda as regras de validação do struct.
// Retorna false se já respondeu (400, ou 413 para corpo grande demais).
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil {
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = errors.New("trailing data after JSON body")
			if extra != nil {
				err = extra
			}
		}
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]FieldError, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, FieldError{Field: fe.Field(), Rule: fe.Tag()})
			}
			writeError(w, http.StatusBadRequest, "invalid request data", details)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request data", nil)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error(), nil)
}
