// Package checks implements the individual email risk checks.
//
// A check answers one question about an address and reports pass or fail
// plus the signals its failure implies. Checks never decide a recommendation
// and never fail open themselves: they return errors, and the orchestrator
// turns errors, timeouts and panics into fail-open results.
package checks

import (
	"context"
	"net/netip"

	fpmodels "mailguard/internal/fingerprint/models"
	"mailguard/internal/validation/models"
	id "mailguard/pkg/domain"
)

// Input is one normalized address plus the request context the checks read.
type Input struct {
	Email           string
	Local           string
	Domain          string
	FingerprintHash id.FingerprintHash
	IP              netip.Addr
	ASN             int
}

// Outcome is what a check found.
type Outcome struct {
	Pass     bool
	Signals  []models.Signal
	Metadata map[string]any
	Device   *fpmodels.DeviceData
	IP       *models.IPData
}

// Check is one named check primitive.
type Check interface {
	Name() models.CheckName
	Run(ctx context.Context, in Input) (Outcome, error)
}

func pass() Outcome {
	return Outcome{Pass: true}
}

func fail(signals ...models.Signal) Outcome {
	return Outcome{Pass: false, Signals: signals}
}

func verdict(ok bool, signal models.Signal) Outcome {
	if ok {
		return pass()
	}
	return fail(signal)
}
