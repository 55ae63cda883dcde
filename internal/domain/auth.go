package domain

// Outcome messages returned to callers. Kept stable because clients match on them.
const (
	MsgLoginSuccessful        = "Login successful"
	MsgInvalidCredentials     = "Invalid username or password"
	MsgRegistrationSuccessful = "Registration successful"
	MsgUsernameExists         = "Username already exists"
	MsgEmailExists            = "Email already exists"
	MsgTokenValid             = "Token is valid"
	MsgTokenInvalid           = "Invalid or expired token"
	MsgUserUnavailable        = "User not found or disabled"
	MsgValidationFailed       = "Token validation failed"
)

// AuthOutcome is the result of a login or registration attempt.
// Token is non-empty if and only if Success is true.
type AuthOutcome struct {
	Success  bool
	Token    string
	Username string
	Email    string
	Role     Role
	Message  string
}

// ValidationOutcome is the result of checking a presented token.
type ValidationOutcome struct {
	Valid    bool
	Username string
	Message  string
}

// AuthFailure builds a failed outcome carrying only a message.
func AuthFailure(message string) *AuthOutcome {
	return &AuthOutcome{Message: message}
}

// AuthSuccess builds a successful outcome for the identity and its token.
func AuthSuccess(token string, id *Identity, message string) *AuthOutcome {
	return &AuthOutcome{
		Success:  true,
		Token:    token,
		Username: id.Username,
		Email:    id.Email,
		Role:     id.Role,
		Message:  message,
	}
}

// InvalidToken builds a negative validation outcome.
func InvalidToken(message string) *ValidationOutcome {
	return &ValidationOutcome{Message: message}
}
