package models

import "fmt"

// EnrollmentKind classifies the remote enrollment state of a user.
type EnrollmentKind int

const (
	// EnrollmentNoRemoteService means no remote verification service is configured.
	EnrollmentNoRemoteService EnrollmentKind = iota
	// EnrollmentRemoteUnreachable means the token lookup failed for this attempt.
	EnrollmentRemoteUnreachable
	// EnrollmentNotEnrolled means the remote side knows no token for the user.
	EnrollmentNotEnrolled
	// EnrollmentEnrolled means the remote side holds one or more tokens for the user.
	EnrollmentEnrolled
	// EnrollmentNoServiceAccount means the remote service validates codes but the token
	// lookup cannot run without a service account. Enrollment is not driven in this mode.
	EnrollmentNoServiceAccount
)

// EnrollmentStatus is derived fresh on every attempt from a remote token lookup. It is never stored.
type EnrollmentStatus struct {
	Kind   EnrollmentKind
	Tokens int
}

// NoRemoteService returns the status used when the remote service is not configured.
func NoRemoteService() EnrollmentStatus {
	return EnrollmentStatus{Kind: EnrollmentNoRemoteService}
}

// RemoteUnreachable returns the status used when the token lookup failed.
func RemoteUnreachable() EnrollmentStatus {
	return EnrollmentStatus{Kind: EnrollmentRemoteUnreachable}
}

// NoServiceAccount returns the status used when the remote service is reachable for validation only.
func NoServiceAccount() EnrollmentStatus {
	return EnrollmentStatus{Kind: EnrollmentNoServiceAccount}
}

// EnrollmentFromTokenCount maps a remote token count to a status.
func EnrollmentFromTokenCount(n int) EnrollmentStatus {
	if n <= 0 {
		return EnrollmentStatus{Kind: EnrollmentNotEnrolled}
	}
	return EnrollmentStatus{Kind: EnrollmentEnrolled, Tokens: n}
}

// RemoteEnabled reports whether remote branches may run for this attempt.
func (e EnrollmentStatus) RemoteEnabled() bool {
	switch e.Kind {
	case EnrollmentNotEnrolled, EnrollmentEnrolled, EnrollmentNoServiceAccount:
		return true
	default:
		return false
	}
}

// NeedsEnrollment reports whether the user must finish enrollment before any code check.
func (e EnrollmentStatus) NeedsEnrollment() bool {
	return e.Kind == EnrollmentNotEnrolled
}

func (e EnrollmentStatus) String() string {
	switch e.Kind {
	case EnrollmentNoRemoteService:
		return "no-remote-service"
	case EnrollmentRemoteUnreachable:
		return "remote-unreachable"
	case EnrollmentNotEnrolled:
		return "not-enrolled"
	case EnrollmentEnrolled:
		return fmt.Sprintf("enrolled-%d-tokens", e.Tokens)
	case EnrollmentNoServiceAccount:
		return "no-service-account"
	default:
		return "unknown"
	}
}
