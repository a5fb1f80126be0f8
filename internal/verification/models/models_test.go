package models

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamarler/flaZK/internal/eligibility"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

func TestNewSession(t *testing.T) {
	reqs := eligibility.Requirements{AgeMin: intPtr(25)}
	session, err := NewSession(id.ClientID("acme"), "ACME", "https://acme.example/cb", reqs, "", testNow, 30*time.Minute)
	require.NoError(t, err)

	assert.False(t, session.ID.IsNil())
	assert.Equal(t, StatusPending, session.Status)
	assert.Equal(t, DeliveryPostMessage, session.DeliveryMode)
	assert.Equal(t, testNow, session.CreatedAt)
	assert.Equal(t, testNow.Add(30*time.Minute), session.ExpiresAt)
	assert.Nil(t, session.CompletedAt)
}

func TestNewSessionDefaultsClientName(t *testing.T) {
	session, err := NewSession(id.ClientID("acme"), "", "https://acme.example/cb", eligibility.Requirements{}, "", testNow, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "acme", session.ClientName)
}

func TestNewSessionValidation(t *testing.T) {
	cases := []struct {
		name     string
		clientID id.ClientID
		callback string
	}{
		{"missing client", id.ClientID(""), "https://acme.example/cb"},
		{"missing callback", id.ClientID("acme"), ""},
		{"relative callback", id.ClientID("acme"), "/cb"},
		{"non-http scheme", id.ClientID("acme"), "ftp://acme.example/cb"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSession(tc.clientID, "", tc.callback, eligibility.Requirements{}, "", testNow, time.Minute)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestParseDeliveryMode(t *testing.T) {
	mode, err := ParseDeliveryMode("")
	require.NoError(t, err)
	assert.Equal(t, DeliveryPostMessage, mode)

	mode, err = ParseDeliveryMode("redirect")
	require.NoError(t, err)
	assert.Equal(t, DeliveryRedirect, mode)

	_, err = ParseDeliveryMode("carrier-pigeon")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestIsExpired(t *testing.T) {
	session := &Session{Status: StatusPending, ExpiresAt: testNow}
	assert.False(t, session.IsExpired(testNow))
	assert.True(t, session.IsExpired(testNow.Add(time.Second)))

	// Terminal sessions never read as expired.
	session.Status = StatusCompleted
	assert.False(t, session.IsExpired(testNow.Add(time.Hour)))
}

func TestCallbackOrigin(t *testing.T) {
	session := &Session{CallbackURL: "https://acme.example:8443/cb/path?x=1"}
	origin, err := session.CallbackOrigin()
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example:8443", origin)
}

func TestEntryURLRoundTrip(t *testing.T) {
	reqs := eligibility.Requirements{
		AgeMin:        intPtr(25),
		LicenseStatus: intPtr(1),
		PointsMax:     intPtr(6),
	}
	session, err := NewSession(id.ClientID("acme"), "ACME Car Rentals", "https://acme.example/cb?token=abc", reqs, DeliveryRedirect, testNow, time.Minute)
	require.NoError(t, err)

	entry, err := BuildEntryURL("https://verify.flazk.example/widget", session)
	require.NoError(t, err)

	u, err := url.Parse(entry)
	require.NoError(t, err)
	params, err := ParseEntryParams(u.Query())
	require.NoError(t, err)

	assert.Equal(t, session.ID, params.SessionID)
	assert.Equal(t, session.ClientID, params.ClientID)
	assert.Equal(t, session.ClientName, params.ClientName)
	assert.Equal(t, session.CallbackURL, params.CallbackURL)
	assert.Equal(t, reqs, params.Requirements)
}

func TestEntryURLOmitsUnsetRequirements(t *testing.T) {
	session, err := NewSession(id.ClientID("acme"), "ACME", "https://acme.example/cb",
		eligibility.Requirements{AgeMin: intPtr(21)}, "", testNow, time.Minute)
	require.NoError(t, err)

	entry, err := BuildEntryURL("https://verify.flazk.example", session)
	require.NoError(t, err)

	u, err := url.Parse(entry)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "21", q.Get("age_min"))
	assert.False(t, q.Has("license_status"))
	assert.False(t, q.Has("points_max"))

	params, err := ParseEntryParams(q)
	require.NoError(t, err)
	assert.Nil(t, params.Requirements.LicenseStatus)
	assert.Nil(t, params.Requirements.PointsMax)
}

func TestParseEntryParamsErrors(t *testing.T) {
	valid := url.Values{}
	valid.Set("session", id.NewSessionID().String())
	valid.Set("client", "acme")

	t.Run("missing session", func(t *testing.T) {
		q := url.Values{"client": {"acme"}}
		_, err := ParseEntryParams(q)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("malformed session", func(t *testing.T) {
		q := url.Values{"session": {"nope"}, "client": {"acme"}}
		_, err := ParseEntryParams(q)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("non-numeric requirement", func(t *testing.T) {
		q := url.Values{}
		for k, v := range valid {
			q[k] = v
		}
		q.Set("age_min", "twenty")
		_, err := ParseEntryParams(q)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("out of range requirement", func(t *testing.T) {
		q := url.Values{}
		for k, v := range valid {
			q[k] = v
		}
		q.Set("license_status", "7")
		_, err := ParseEntryParams(q)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
