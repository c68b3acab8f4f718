package domain

// AuthenticatorSetup is what the enrolment page shows: the shared secret
// and the otpauth URI for authenticator apps.
type AuthenticatorSetup struct {
	Secret  string
	URI     string
	Issuer  string
	Account string
}

// RecoveryCodeCount is how many codes are issued when two-factor is enabled
// or the codes are regenerated.
const RecoveryCodeCount = 10
