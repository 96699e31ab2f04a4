package common

// AuthorizationHeaderName carries the bearer credential on inbound requests.
const AuthorizationHeaderName = "Authorization"

// ClientHeaderName names the client application making the request.
const ClientHeaderName = "Client"

// Known client applications. Each (user, client) pair holds at most one
// valid token at a time.
const (
	ClientWeb     = "web"
	ClientIOS     = "ios"
	ClientAndroid = "android"
	ClientOther   = "other"
)

// KnownClient reports whether c is one of the recognized client identifiers.
func KnownClient(c string) bool {
	switch c {
	case ClientWeb, ClientIOS, ClientAndroid, ClientOther:
		return true
	}
	return false
}

// User roles stored on the master record.
const (
	RoleNormal        = "normal"
	RoleAdministrator = "administrator"
	RoleMaster        = "master"
)

// Sex enum values on the master record.
const (
	SexMale   = 1
	SexFemale = 2
)
