package proof

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamarler/flaZK/internal/eligibility"
)

func TestGenerateSatisfied(t *testing.T) {
	gen := NewMockGenerator()
	snap := eligibility.Snapshot{Age: 30, LicenseValid: true, Points: 2}
	thresholds := Thresholds{AgeMin: 25, LicenseRequired: true, PointsMax: 6}

	artifact, err := gen.Generate(context.Background(), snap, thresholds)
	require.NoError(t, err)

	assert.True(t, artifact.Satisfied())
	assert.True(t, WellFormed(artifact.Proof))
	assert.NotEqual(t, Sentinel, artifact.Proof)
}

func TestGenerateNotSatisfiedReturnsSentinel(t *testing.T) {
	gen := NewMockGenerator()
	thresholds := Thresholds{AgeMin: 25, LicenseRequired: true, PointsMax: 6}

	cases := []struct {
		name string
		snap eligibility.Snapshot
	}{
		{"underage", eligibility.Snapshot{Age: 20, LicenseValid: true, Points: 2}},
		{"invalid license", eligibility.Snapshot{Age: 30, LicenseValid: false, Points: 2}},
		{"too many points", eligibility.Snapshot{Age: 30, LicenseValid: true, Points: 9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			artifact, err := gen.Generate(context.Background(), tc.snap, thresholds)
			require.NoError(t, err)
			assert.Equal(t, Sentinel, artifact.Proof)
			assert.False(t, artifact.Satisfied())
			assert.True(t, WellFormed(artifact.Proof), "sentinel is still a well-formed token")
		})
	}
}

// TestGenerateSentinelIffPredicateFails checks the sentinel property over
// randomized snapshot/threshold pairs: meets == true <=> token != sentinel.
func TestGenerateSentinelIffPredicateFails(t *testing.T) {
	gen := NewMockGenerator()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		snap := eligibility.Snapshot{
			Age:          rng.Intn(90),
			LicenseValid: rng.Intn(2) == 1,
			Points:       rng.Intn(15),
		}
		thresholds := Thresholds{
			AgeMin:          rng.Intn(90),
			LicenseRequired: true,
			PointsMax:       rng.Intn(15),
		}

		artifact, err := gen.Generate(context.Background(), snap, thresholds)
		require.NoError(t, err)

		meets := snap.Age >= thresholds.AgeMin && snap.LicenseValid && snap.Points <= thresholds.PointsMax
		assert.Equal(t, meets, artifact.Proof != Sentinel,
			"snapshot %+v thresholds %+v", snap, thresholds)
	}
}

func TestThresholdsUnsetLicense(t *testing.T) {
	thresholds := Thresholds{AgeMin: 18, LicenseRequired: false, PointsMax: 100}
	snap := eligibility.Snapshot{Age: 20, LicenseValid: false, Points: 0}

	assert.True(t, thresholds.Meets(snap), "unset license requirement is automatically satisfied")
}

func TestGenerateTokensAreFresh(t *testing.T) {
	gen := NewMockGenerator()
	snap := eligibility.Snapshot{Age: 30, LicenseValid: true, Points: 0}
	thresholds := Thresholds{AgeMin: 18, LicenseRequired: true, PointsMax: 6}

	a, err := gen.Generate(context.Background(), snap, thresholds)
	require.NoError(t, err)
	b, err := gen.Generate(context.Background(), snap, thresholds)
	require.NoError(t, err)

	assert.NotEqual(t, a.Proof, b.Proof, "identical inputs must not produce linkable tokens")
}

func TestThresholdsFrom(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	empty := ThresholdsFrom(eligibility.Requirements{})
	assert.Zero(t, empty.AgeMin)
	assert.False(t, empty.LicenseRequired)
	assert.True(t, empty.Meets(eligibility.Snapshot{Age: 0, LicenseValid: false, Points: 1 << 40}),
		"unset requirements must pass any snapshot")

	full := ThresholdsFrom(eligibility.Requirements{
		AgeMin:        intPtr(25),
		LicenseStatus: intPtr(1),
		PointsMax:     intPtr(6),
	})
	assert.Equal(t, Thresholds{AgeMin: 25, LicenseRequired: true, PointsMax: 6}, full)

	zeroFlag := ThresholdsFrom(eligibility.Requirements{LicenseStatus: intPtr(0)})
	assert.False(t, zeroFlag.LicenseRequired, "license flag 0 means not required")
}

func TestWellFormed(t *testing.T) {
	assert.True(t, WellFormed(Sentinel))
	assert.False(t, WellFormed(""))
	assert.False(t, WellFormed("0x1234"))
	assert.False(t, WellFormed("0x"+"zz"+Sentinel[4:]))
}
