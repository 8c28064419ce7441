package handler

import (
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ShopHandler serves the two demo shop endpoints whose traffic the
// pipeline tracks. Both are deliberately thin: they exist so the
// recorder has collaborators and the load tester has targets.
type ShopHandler struct {
	logger   *slog.Logger
	demoUser string
	demoPass string
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(logger *slog.Logger, demoUser, demoPass string) *ShopHandler {
	return &ShopHandler{logger: logger, demoUser: demoUser, demoPass: demoPass}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login. Credentials are compared in
// plain text against the configured demo pair; this is a demo shop,
// not an auth system.
func (h *ShopHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed login body")
		return
	}

	if req.Username != h.demoUser || req.Password != h.demoPass {
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "user": req.Username})
}

type checkoutRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

// Checkout handles POST /api/checkout. Payment is simulated: a
// well-formed cart gets a generated order id.
func (h *ShopHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed checkout body")
		return
	}
	if len(req.Items) == 0 {
		respondWithError(w, http.StatusBadRequest, "empty cart")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "confirmed",
		"orderId": uuid.NewString(),
	})
}
