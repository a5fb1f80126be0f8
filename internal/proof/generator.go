// Package proof produces the attestation artifact asserting that a user's
// eligibility snapshot meets the requested thresholds, without revealing the
// snapshot itself.
//
// The mock generator here preserves the exact input/output contract a real
// non-interactive proof scheme must honor: a fresh random token when the
// predicate holds, the reserved all-zero sentinel when it does not. Downstream
// completion logic depends on that sentinel convention.
package proof

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math"
	"strings"

	"github.com/bamarler/flaZK/internal/eligibility"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

// TokenHexLen is the number of hex characters in a proof token (32 bytes).
const TokenHexLen = 64

// Sentinel is the reserved token meaning "requirements not satisfied".
// Any other well-formed token means "satisfied". This convention is
// load-bearing: completion logic branches on it.
var Sentinel = "0x" + strings.Repeat("0", TokenHexLen)

// Artifact is the opaque proof token. It carries no recoverable information
// about the snapshot it was derived from.
type Artifact struct {
	Proof string `json:"proof"`
}

// Satisfied reports whether the artifact attests that requirements were met.
func (a Artifact) Satisfied() bool {
	return a.Proof != "" && a.Proof != Sentinel
}

// WellFormed reports whether the token has the expected shape.
func WellFormed(token string) bool {
	if !strings.HasPrefix(token, "0x") || len(token) != len("0x")+TokenHexLen {
		return false
	}
	_, err := hex.DecodeString(token[2:])
	return err == nil
}

// Thresholds are the concrete limits a snapshot is proven against.
type Thresholds struct {
	AgeMin          int
	LicenseRequired bool
	PointsMax       int
}

// ThresholdsFrom widens client requirements into concrete limits. Unset
// requirements become limits that trivially pass.
func ThresholdsFrom(r eligibility.Requirements) Thresholds {
	t := Thresholds{PointsMax: math.MaxInt}
	if r.AgeMin != nil {
		t.AgeMin = *r.AgeMin
	}
	if r.PointsMax != nil {
		t.PointsMax = *r.PointsMax
	}
	t.LicenseRequired = r.WantsLicense()
	return t
}

// Meets evaluates the eligibility predicate. When the license requirement is
// unset it is automatically satisfied; the other two comparisons always run
// (unset requirements arrive as zero / max thresholds that trivially pass).
func (t Thresholds) Meets(snap eligibility.Snapshot) bool {
	if snap.Age < t.AgeMin {
		return false
	}
	if t.LicenseRequired && !snap.LicenseValid {
		return false
	}
	return snap.Points <= t.PointsMax
}

// Generator produces proof artifacts. The real implementation must be a
// succinct non-interactive proof over the same predicate with the same
// sentinel convention.
type Generator interface {
	Generate(ctx context.Context, snap eligibility.Snapshot, thresholds Thresholds) (Artifact, error)
}

// MockGenerator evaluates the predicate in-process and fabricates an opaque
// token. It stands in for the proof backend during development.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (g *MockGenerator) Generate(_ context.Context, snap eligibility.Snapshot, thresholds Thresholds) (Artifact, error) {
	if !thresholds.Meets(snap) {
		return Artifact{Proof: Sentinel}, nil
	}

	buf := make([]byte, TokenHexLen/2)
	if _, err := rand.Read(buf); err != nil {
		// Never degrade to the sentinel on infrastructure failure: that would
		// turn "could not prove" into "does not qualify".
		return Artifact{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not generate proof token")
	}
	return Artifact{Proof: "0x" + hex.EncodeToString(buf)}, nil
}

var _ Generator = (*MockGenerator)(nil)
