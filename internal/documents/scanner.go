// Package documents owns the document-scanning boundary of the verification
// flow: persisted per-user fact sets and the Scanner capability that the
// widget drives. The Scanner is an injected interface selected by
// configuration at composition time; no module-level instances.
package documents

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bamarler/flaZK/internal/eligibility"
	id "github.com/bamarler/flaZK/pkg/domain"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
	"github.com/bamarler/flaZK/pkg/platform/sentinel"
)

// Scanner is the document-processing capability. A production implementation
// fronts a real OCR/extraction pipeline; errors must propagate explicitly and
// are never interpreted as "requirement satisfied".
type Scanner interface {
	// ScanUserDocuments reports, per requested requirement, whether the
	// user's stored documents carry enough data to decide it.
	ScanUserDocuments(ctx context.Context, userID id.UserID, reqs eligibility.Requirements) (eligibility.ScanResult, error)

	// ExtractFromDocuments derives the numeric snapshot from the user's
	// stored documents, last-write-wins in upload order.
	ExtractFromDocuments(ctx context.Context, userID id.UserID, now time.Time) (eligibility.Snapshot, error)

	// AnalyzeUploadedDocument extracts partial facts from a fresh upload
	// and persists them for subsequent scans.
	AnalyzeUploadedDocument(ctx context.Context, userID id.UserID, fileName string, content []byte) (eligibility.DocumentFacts, error)
}

const scanTimeout = 10 * time.Second

// MockScanner is the development Scanner. It extracts facts from file naming
// conventions instead of running OCR, but runs the same storage and
// evaluation paths a real pipeline would.
type MockScanner struct {
	store Store
	now   func() time.Time
}

// NewMockScanner constructs a MockScanner over a document store.
func NewMockScanner(store Store) *MockScanner {
	return &MockScanner{store: store, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (s *MockScanner) WithClock(now func() time.Time) *MockScanner {
	if now != nil {
		s.now = now
	}
	return s
}

// scanProbeResult holds per-requirement availability. Each goroutine writes
// to its own field, avoiding data races.
type scanProbeResult struct {
	age     bool
	license bool
	points  bool
}

// ScanUserDocuments probes each requested requirement in parallel against the
// stored fact sets, with shared context cancellation. A user with no stored
// documents scans with an empty fact set rather than erroring: unset
// requirements still pass, set ones report missing data.
func (s *MockScanner) ScanUserDocuments(ctx context.Context, userID id.UserID, reqs eligibility.Requirements) (eligibility.ScanResult, error) {
	facts, err := s.userFacts(ctx, userID)
	if err != nil {
		return eligibility.ScanResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	var result scanProbeResult

	g.Go(func() error {
		result.age = eligibility.Scan(facts, eligibility.Requirements{AgeMin: reqs.AgeMin}).Age
		return ctx.Err()
	})
	g.Go(func() error {
		result.license = eligibility.Scan(facts, eligibility.Requirements{LicenseStatus: reqs.LicenseStatus}).License
		return ctx.Err()
	})
	g.Go(func() error {
		result.points = eligibility.Scan(facts, eligibility.Requirements{PointsMax: reqs.PointsMax}).Points
		return ctx.Err()
	})

	if err := g.Wait(); err != nil {
		return eligibility.ScanResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "document scan interrupted")
	}
	return eligibility.ScanResult{Age: result.age, License: result.license, Points: result.points}, nil
}

func (s *MockScanner) ExtractFromDocuments(ctx context.Context, userID id.UserID, now time.Time) (eligibility.Snapshot, error) {
	facts, err := s.userFacts(ctx, userID)
	if err != nil {
		return eligibility.Snapshot{}, err
	}
	return eligibility.Extract(facts, now), nil
}

// AnalyzeUploadedDocument derives partial facts from the upload. The mock
// keys off the lowercased file name the way the development fixtures are
// named; unknown files yield an empty fact set, not an error.
func (s *MockScanner) AnalyzeUploadedDocument(ctx context.Context, userID id.UserID, fileName string, content []byte) (eligibility.DocumentFacts, error) {
	if len(content) == 0 {
		return eligibility.DocumentFacts{}, dErrors.New(dErrors.CodeValidation, "document content is empty")
	}

	facts := eligibility.DocumentFacts{SchemaVersion: eligibility.FactsSchemaVersion}
	name := strings.ToLower(fileName)

	if strings.Contains(name, "license") || strings.Contains(name, "combined") || strings.Contains(name, "both") {
		facts.LicenseStatus = eligibility.LicenseStatusValid
		facts.LicenseExpiry = s.now().AddDate(2, 0, 0).Format("2006-01-02")
	}
	if strings.Contains(name, "record") || strings.Contains(name, "dmv") || strings.Contains(name, "driving") {
		points := 3
		facts.DrivingPoints = &points
	}
	if strings.Contains(name, "combined") || strings.Contains(name, "both") {
		points := 2
		facts.DrivingPoints = &points
	}
	if strings.Contains(name, "id") || strings.Contains(name, "passport") {
		facts.BirthDate = s.now().AddDate(-30, 0, 0).Format("2006-01-02")
	}

	// A re-upload of the same document overlays fresh facts onto the prior
	// scan, so a partial re-scan does not erase established fields.
	if prior, ok := s.priorFacts(ctx, userID, fileName); ok {
		facts = eligibility.Merge(prior, facts)
	}

	doc, err := NewDocument(userID, fileName, facts, s.now())
	if err != nil {
		return eligibility.DocumentFacts{}, err
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return eligibility.DocumentFacts{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not persist document facts")
	}
	return facts, nil
}

// priorFacts returns the facts of the user's most recent upload of the named
// document, if any.
func (s *MockScanner) priorFacts(ctx context.Context, userID id.UserID, fileName string) (eligibility.DocumentFacts, bool) {
	docs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return eligibility.DocumentFacts{}, false
	}
	for i := len(docs) - 1; i >= 0; i-- {
		if docs[i].Name == fileName {
			return docs[i].Facts, true
		}
	}
	return eligibility.DocumentFacts{}, false
}

func (s *MockScanner) userFacts(ctx context.Context, userID id.UserID) ([]eligibility.DocumentFacts, error) {
	docs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not read documents")
	}
	facts := make([]eligibility.DocumentFacts, len(docs))
	for i, doc := range docs {
		facts[i] = doc.Facts
	}
	return facts, nil
}
