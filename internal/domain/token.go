package domain

// OwnedToken is one entry of a holder's enumerated tokens.
// Produced per listing call and never cached.
type OwnedToken struct {
	TokenID  string // decimal uint256
	TokenURI string // empty when the tokenURI read failed
}
