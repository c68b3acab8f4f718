package domain

// SignInResult is the outcome of a sign-in attempt. At most one flag is set;
// none set means the credentials were rejected.
type SignInResult struct {
	Succeeded         bool
	RequiresTwoFactor bool
	IsLockedOut       bool
	IsNotAllowed      bool
}

var (
	SignInSuccess           = SignInResult{Succeeded: true}
	SignInFailed            = SignInResult{}
	SignInTwoFactorRequired = SignInResult{RequiresTwoFactor: true}
	SignInLockedOut         = SignInResult{IsLockedOut: true}
	SignInNotAllowed        = SignInResult{IsNotAllowed: true}
)

func (r SignInResult) String() string {
	switch {
	case r.Succeeded:
		return "Succeeded"
	case r.RequiresTwoFactor:
		return "RequiresTwoFactor"
	case r.IsLockedOut:
		return "Lockedout"
	case r.IsNotAllowed:
		return "NotAllowed"
	default:
		return "Failed"
	}
}
