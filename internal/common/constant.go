package common

// CodeAlphabet is the alphabet for human-shareable codes. Ambiguous
// characters (0/O, 1/I) are left out.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	// GroupCodeLength is the length of a group join code.
	GroupCodeLength = 6
	// InvitationCodeLength is the length of an invitation code.
	InvitationCodeLength = 8
	// MaxCodeAttempts caps retry-until-unique loops for generated codes.
	MaxCodeAttempts = 5
)

// AuthorizationHeaderName carries the bearer access token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName is echoed back on every response.
const RequestIDHeaderName = "X-Request-ID"
