package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/earn"
	"github.com/conebot/conebot-go/internal/logger"
)

type transferRequest struct {
	FromUser string  `json:"from_user"`
	ToUser   string  `json:"to_user"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type exchangeRequest struct {
	UserID       string  `json:"user_id"`
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Amount       float64 `json:"amount"`
}

type purchaseRequest struct {
	UserID   string   `json:"user_id"`
	Item     string   `json:"item"`
	Currency string   `json:"currency"`
	Quantity int64    `json:"quantity"`
	Roles    []string `json:"roles"`
}

type openRequest struct {
	UserID string `json:"user_id"`
	Table  string `json:"table"`
	Rolls  int    `json:"rolls"`
}

type useItemRequest struct {
	UserID string `json:"user_id"`
	Item   string `json:"item"`
}

type sellRequest struct {
	UserID   string `json:"user_id"`
	Item     string `json:"item"`
	Quantity int64  `json:"quantity"`
}

type adjustBalanceRequest struct {
	UserID   string  `json:"user_id"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type giveItemRequest struct {
	UserID string `json:"user_id"`
	Item   string `json:"item"`
	Amount int64  `json:"amount"`
}

type earnRequest struct {
	UserID    string   `json:"user_id"`
	ChannelID string   `json:"channel_id"`
	Roles     []string `json:"roles"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Transfer(r.Context(), chi.URLParam(r, "guildID"), req.FromUser, req.ToUser, req.Currency, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Pay(r.Context(), chi.URLParam(r, "guildID"), req.FromUser, req.ToUser, req.Currency, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Exchange(r.Context(), chi.URLParam(r, "guildID"), req.UserID, req.FromCurrency, req.ToCurrency, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Purchase(r.Context(), chi.URLParam(r, "guildID"), req.UserID, req.Item, req.Currency, req.Quantity, req.Roles)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.OpenTable(r.Context(), chi.URLParam(r, "guildID"), req.UserID, req.Table, req.Rolls)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleUseItem(w http.ResponseWriter, r *http.Request) {
	var req useItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.UseItem(r.Context(), chi.URLParam(r, "guildID"), req.UserID, req.Item)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Sell(r.Context(), chi.URLParam(r, "guildID"), req.UserID, req.Item, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleGive(w http.ResponseWriter, r *http.Request) {
	var req adjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	newBalance, err := s.engine.Deposit(r.Context(), chi.URLParam(r, "guildID"), req.UserID, req.Currency, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"new_balance": newBalance})
}

func (s *Server) handleTake(w http.ResponseWriter, r *http.Request) {
	var req adjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	newBalance, err := s.engine.Withdraw(r.Context(), chi.URLParam(r, "guildID"), req.UserID, req.Currency, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"new_balance": newBalance})
}

func (s *Server) handleGiveItem(w http.ResponseWriter, r *http.Request) {
	var req giveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	newAmount, err := s.engine.GiveItem(r.Context(), chi.URLParam(r, "guildID"), req.UserID, req.Item, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"new_inventory": newAmount})
}

func (s *Server) handleEarn(w http.ResponseWriter, r *http.Request) {
	var req earnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	credits, err := s.earn.HandleMessage(r.Context(), earn.Message{
		GuildID:   chi.URLParam(r, "guildID"),
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		Roles:     req.Roles,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"credits": credits})
}

func (s *Server) handleCascadeDelete(w http.ResponseWriter, r *http.Request) {
	kind := domain.Kind(chi.URLParam(r, "kind"))
	res, err := s.engine.CascadeDelete(r.Context(), chi.URLParam(r, "guildID"), kind, chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.engine.GetBalances(r.Context(), chi.URLParam(r, "guildID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"balances": balances})
}

func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.GetInventory(r.Context(), chi.URLParam(r, "guildID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"inventory": entries})
}

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.engine.ListCurrencies(r.Context(), chi.URLParam(r, "guildID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"currencies": currencies})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListItems(r.Context(), chi.URLParam(r, "guildID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleListStore(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.ListStoreEntries(r.Context(), chi.URLParam(r, "guildID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"store": entries})
}

// writeDomainError maps engine sentinels onto status codes. Conflict-class
// errors surface as 409 so callers know a retry is reasonable.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrNegativeStock),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrNotPayable),
		errors.Is(err, domain.ErrNotConsumable),
		errors.Is(err, domain.ErrNotSellable),
		errors.Is(err, domain.ErrUnresolvable):
		writeError(w, r, http.StatusUnprocessableEntity, err)
	case errors.Is(err, domain.ErrRoleRestricted):
		writeError(w, r, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrLockTimeout),
		errors.Is(err, domain.ErrConcurrentModification):
		writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err)
	default:
		logger.FromContext(r.Context()).Error("Unhandled error", "error", err)
		writeError(w, r, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.FromContext(r.Context()).Error("Failed to encode response", "error", err)
	}
}
