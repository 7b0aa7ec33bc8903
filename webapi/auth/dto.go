package auth

// TokenRequest represents the request body for issuing a token.
type TokenRequest struct {
	CustomerID string `json:"customerId" form:"customerId" query:"customerId" validate:"required,max=64"`
}

// TokenResponse carries the issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}
