package types

// TokenPair is what login, registration and refresh hand out.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is the data part of a login or registration response.
type AuthResult struct {
	User *User `json:"user"`
	TokenPair
}

// Session is a snapshot of the client's authentication state. IsAuthenticated is only true with both a
// non-expired access token and a resolved User.
type Session struct {
	AccessToken     string
	RefreshToken    string
	User            *User
	IsAuthenticated bool
}
