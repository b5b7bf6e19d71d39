package models

type CheckoutForm struct {
	Amount int `json:"amount"`
}

type ReconcileForm struct {
	Payment string `json:"payment"`
	Amount  int    `json:"amount"`
}

type TokenBalanceResponse struct {
	Tokens int `json:"tokens"`
}
