package model

// Buyer is the authenticated purchaser supplied by the identity service.
// The engine trusts it as given.
type Buyer struct {
    ID    string `json:"id"`
    Name  string `json:"name"`
    Email string `json:"email"`
}
