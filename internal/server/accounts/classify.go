package accounts

import "github.com/go-playground/validator/v10"

// AccountType classifies a free-form login identifier.
type AccountType string

const (
	AccountTypeName  AccountType = "name"
	AccountTypeEmail AccountType = "email"

	// AccountTypeUnknown means the identifier matches neither shape and the
	// request must be rejected.
	AccountTypeUnknown AccountType = ""
)

var validate = validator.New()

func isEmail(s string) bool {
	return validate.Var(s, "email") == nil
}

// GetAccountType returns the type of the identifier: email shape wins over
// username shape, and anything matching neither is unknown. Pure, no I/O.
func GetAccountType(account string) AccountType {
	if isEmail(account) {
		return AccountTypeEmail
	}
	if usernameRegex.MatchString(account) {
		return AccountTypeName
	}
	return AccountTypeUnknown
}
