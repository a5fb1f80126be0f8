package models

import (
	"net/url"
	"strconv"

	"github.com/bamarler/flaZK/internal/eligibility"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

// Entry URL query parameter names. These are a stable contract with the
// verification widget and must round-trip through BuildEntryURL and
// ParseEntryParams without loss.
const (
	paramSession       = "session"
	paramClient        = "client"
	paramClientName    = "name"
	paramCallback      = "callback"
	paramAgeMin        = "age_min"
	paramLicenseStatus = "license_status"
	paramPointsMax     = "points_max"
)

// BuildEntryURL produces the widget entry URL for a session. Only the
// requirements the client actually set appear as parameters.
func BuildEntryURL(base string, s *Session) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "invalid widget base URL")
	}

	q := u.Query()
	q.Set(paramSession, s.ID.String())
	q.Set(paramClient, s.ClientID.String())
	q.Set(paramClientName, s.ClientName)
	q.Set(paramCallback, s.CallbackURL)
	if s.Requirements.AgeMin != nil {
		q.Set(paramAgeMin, strconv.Itoa(*s.Requirements.AgeMin))
	}
	if s.Requirements.LicenseStatus != nil {
		q.Set(paramLicenseStatus, strconv.Itoa(*s.Requirements.LicenseStatus))
	}
	if s.Requirements.PointsMax != nil {
		q.Set(paramPointsMax, strconv.Itoa(*s.Requirements.PointsMax))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EntryParams is the widget-side view of an entry URL.
type EntryParams struct {
	SessionID    id.SessionID
	ClientID     id.ClientID
	ClientName   string
	CallbackURL  string
	Requirements eligibility.Requirements
}

// ParseEntryParams recovers session identity and requirements from entry URL
// query values. It is the inverse of BuildEntryURL.
func ParseEntryParams(q url.Values) (EntryParams, error) {
	var p EntryParams

	sid, err := id.ParseSessionID(q.Get(paramSession))
	if err != nil {
		return p, dErrors.New(dErrors.CodeBadRequest, "missing or invalid session parameter")
	}
	cid, err := id.ParseClientID(q.Get(paramClient))
	if err != nil {
		return p, dErrors.New(dErrors.CodeBadRequest, "missing or invalid client parameter")
	}

	p.SessionID = sid
	p.ClientID = cid
	p.ClientName = q.Get(paramClientName)
	p.CallbackURL = q.Get(paramCallback)

	for _, f := range []struct {
		key string
		dst **int
	}{
		{paramAgeMin, &p.Requirements.AgeMin},
		{paramLicenseStatus, &p.Requirements.LicenseStatus},
		{paramPointsMax, &p.Requirements.PointsMax},
	} {
		raw := q.Get(f.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return EntryParams{}, dErrors.New(dErrors.CodeBadRequest, "invalid "+f.key+" parameter")
		}
		*f.dst = &n
	}

	if err := p.Requirements.Validate(); err != nil {
		return EntryParams{}, err
	}
	return p, nil
}
