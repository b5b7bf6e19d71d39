package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/furnifit/furnifit-server/models"
	"github.com/furnifit/furnifit-server/utils"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	middleware "github.com/furnifit/furnifit-server/middlewares"
)

// Balance shown before the first successful refresh, matching the signup
// credit in the record store.
const defaultTokenBalance = 10

type TokenHandler struct {
	DB       *sql.DB
	Sessions *utils.SessionStore

	// Tier amount -> Stripe price id. Unconfigured tiers cannot be bought.
	PriceIDs    map[int]string
	FrontendURL string
}

// Refresh re-reads the balance from the record store and overwrites the
// cached value. The client calls this when its tab regains visibility;
// the background refresher performs the same read on a timer. Both are
// idempotent, so overlapping triggers need no coordination.
func (h *TokenHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := r.Context().Value(middleware.SessionContextKey).(*models.Session)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var tokens int
	err := h.DB.QueryRow(`SELECT tokens FROM users WHERE gmail = $1`, sess.Email).Scan(&tokens)
	if err == sql.ErrNoRows {
		utils.RespondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, err, "Unable to read token balance")
		return
	}

	if err := h.Sessions.SetTokenBalance(r.Context(), sess.ID, tokens); err != nil {
		log.Printf("Failed to cache token balance for %s: %v", sess.Email, err)
	}

	utils.RespondSuccess(w, http.StatusOK, models.TokenBalanceResponse{Tokens: tokens})
}

// Reconcile credits a completed payment: cached balance plus the returned
// amount is written to the record store, then re-read to confirm. This is
// a read-modify-write without a transactional guard; two tabs processing
// the same return can double-credit. See DESIGN.md.
func (h *TokenHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	sess, ok := r.Context().Value(middleware.SessionContextKey).(*models.Session)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var form models.ReconcileForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if form.Payment != "success" || form.Amount <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "Not a successful payment return")
		return
	}

	cached := defaultTokenBalance
	if sess.TokenBalance != nil {
		cached = *sess.TokenBalance
	}

	newBalance := cached + form.Amount

	result, err := h.DB.Exec(`UPDATE users SET tokens = $1 WHERE gmail = $2`, newBalance, sess.Email)
	if err != nil {
		log.Printf("Failed to credit tokens for %s: %v", sess.Email, err)
		utils.RespondError(w, http.StatusInternalServerError, "Could not credit tokens. Please contact support.")
		return
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		utils.RespondError(w, http.StatusInternalServerError, "Could not credit tokens. Please contact support.")
		return
	}

	// Confirm by re-reading; the remote value stays authoritative.
	var tokens int
	if err := h.DB.QueryRow(`SELECT tokens FROM users WHERE gmail = $1`, sess.Email).Scan(&tokens); err != nil {
		log.Printf("Failed to confirm token credit for %s: %v", sess.Email, err)
		utils.RespondError(w, http.StatusInternalServerError, "Could not credit tokens. Please contact support.")
		return
	}

	if err := h.Sessions.SetTokenBalance(r.Context(), sess.ID, tokens); err != nil {
		log.Printf("Failed to cache token balance for %s: %v", sess.Email, err)
	}

	utils.RespondSuccess(w, http.StatusOK, models.TokenBalanceResponse{Tokens: tokens})
}

// CreateCheckoutSession starts a Stripe Checkout for one of the fixed
// token tiers. The success URL echoes the amount so the dashboard can
// reconcile on return.
func (h *TokenHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := r.Context().Value(middleware.SessionContextKey).(*models.Session)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var form models.CheckoutForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	priceID, ok := h.PriceIDs[form.Amount]
	if !ok || priceID == "" {
		utils.RespondError(w, http.StatusBadRequest, "Payment is not configured for this token amount")
		return
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(fmt.Sprintf("%s/dashboard?payment=success&amount=%d", h.FrontendURL, form.Amount)),
		CancelURL:  stripe.String(h.FrontendURL + "/dashboard"),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("userID", sess.UserID)
	params.AddMetadata("email", sess.Email)

	result, err := session.New(params)
	if err != nil {
		utils.RespondInternal(w, err, "Unable to create checkout session")
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]string{"checkout_url": result.URL})
}
