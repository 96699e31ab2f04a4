package accounts

import (
	"regexp"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	fullNameRegex = regexp.MustCompile(`^.{1,30}$`)
	passwordRegex = regexp.MustCompile(`^.{6,30}$`)
)

// validateFields checks the shape of every supplied profile field. Empty
// strings are treated as not supplied and skipped; password is only required
// at signup, so callers pass requirePassword accordingly. Validation runs
// before any write, so a validation failure never leaves partial state.
func validateFields(username, email, password, firstName, lastName string, sex *int, requirePassword bool) error {
	if username != "" && !usernameRegex.MatchString(username) {
		return common.ErrInvalidUsername
	}
	if email != "" && !isEmail(email) {
		return common.ErrInvalidEmail
	}
	if requirePassword && !passwordRegex.MatchString(password) {
		return common.ErrInvalidPassword
	}
	for _, name := range []string{firstName, lastName} {
		if name != "" && !fullNameRegex.MatchString(name) {
			return common.ErrInvalidFullName
		}
	}
	if sex != nil && *sex != common.SexMale && *sex != common.SexFemale {
		return common.ErrInvalidSex
	}
	return nil
}
