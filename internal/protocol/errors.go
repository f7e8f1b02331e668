package protocol

import "fmt"

// SessionExpiredError means the game page answered with the login form:
// the session that loaded it is no longer authenticated. Fatal for the
// current run; a fresh run re-authenticates.
type SessionExpiredError struct{}

func (e *SessionExpiredError) Error() string {
	return "login expired"
}

// GameLoadError is a non-auth error banner on the game page.
type GameLoadError struct {
	Reason string
}

func (e *GameLoadError) Error() string {
	return "game load failed: " + e.Reason
}

// CombinationError means the filled combination was rejected, either by
// local validation (mark count mismatch) or by the remote form.
type CombinationError struct {
	Reason string
}

func (e *CombinationError) Error() string {
	return "combination failed: " + e.Reason
}

// PriceTooHighError is the price guard tripping: the confirmed bet price
// exceeds the operator's ceiling. Never skipped silently.
type PriceTooHighError struct {
	Limit float64
	Price float64
}

func (e *PriceTooHighError) Error() string {
	return fmt.Sprintf("bet price %g is higher than the %g limit", e.Price, e.Limit)
}

// StructureError means an expected element is missing from a page. It
// signals the parser is out of sync with the remote system and must not
// be masked as a transient failure.
type StructureError struct {
	Reason string
}

func (e *StructureError) Error() string {
	return "unexpected page structure: " + e.Reason
}

// ConfirmError means the confirmation step was rejected or its expected
// markers were absent.
type ConfirmError struct {
	Reason string
}

func (e *ConfirmError) Error() string {
	return "bet confirmation failed: " + e.Reason
}
