package accounts

// Profile is the readable subset of the master record.
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Sex       int    `json:"sex,omitempty"`
	Role      string `json:"role,omitempty"`
}

// SignupParams carries the fields accepted at signup. Empty strings mean the
// field was not supplied; at least one of Username and Email must be set.
type SignupParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Sex       *int
}

// UpdateParams carries a profile edit. Only supplied fields are touched;
// password changes are not accepted here.
type UpdateParams struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Sex       *int
}

// SigninParams identifies an account by username or email. AccountType may
// be left empty, in which case the identifier is classified by shape.
type SigninParams struct {
	Account     string
	AccountType AccountType
	Password    string
}

// AuthResult is returned by signup and signin: the account id plus a fresh
// opaque token for the requesting client.
type AuthResult struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}
