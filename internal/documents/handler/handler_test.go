package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/bamarler/flaZK/internal/documents"
	"github.com/bamarler/flaZK/internal/eligibility"
	"github.com/bamarler/flaZK/internal/platform/middleware"
	id "github.com/bamarler/flaZK/pkg/domain"
)

type DocumentsHandlerSuite struct {
	suite.Suite

	userID id.UserID
	store  *documents.InMemoryStore
	router chi.Router
}

func (s *DocumentsHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.userID = id.NewUserID()
	s.store = documents.NewInMemoryStore()

	h := New(documents.NewMockScanner(s.store), s.store, logger)
	s.router = chi.NewRouter()
	// auth middleware stands in for BearerAuth: every request runs as s.userID
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.ContextWithUserID(r.Context(), s.userID)))
		})
	})
	h.Register(s.router)
}

func (s *DocumentsHandlerSuite) upload(fileName string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("document", fileName)
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/analyze", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *DocumentsHandlerSuite) TestAnalyzeReturnsPartialFacts() {
	rec := s.upload("drivers-license.jpg", []byte("license scan"))
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp AnalyzeResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(eligibility.LicenseStatusValid, resp.Facts.LicenseStatus)
	s.Empty(resp.Facts.BirthDate)
}

func (s *DocumentsHandlerSuite) TestAnalyzeMissingFile() {
	req := httptest.NewRequest(http.MethodPost, "/documents/analyze", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *DocumentsHandlerSuite) TestListOwnDocuments() {
	s.Require().Equal(http.StatusOK, s.upload("passport.pdf", []byte("scan")).Code)
	s.Require().Equal(http.StatusOK, s.upload("dmv-record.pdf", []byte("scan")).Code)

	req := httptest.NewRequest(http.MethodGet, "/documents/user/"+s.userID.String(), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp ListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().Len(resp.Documents, 2)
	s.Equal("passport.pdf", resp.Documents[0].Name)
	s.Equal("dmv-record.pdf", resp.Documents[1].Name)
}

func (s *DocumentsHandlerSuite) TestListForeignUserForbidden() {
	req := httptest.NewRequest(http.MethodGet, "/documents/user/"+id.NewUserID().String(), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *DocumentsHandlerSuite) TestListMalformedUserForbidden() {
	req := httptest.NewRequest(http.MethodGet, "/documents/user/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *DocumentsHandlerSuite) TestScanWithNoDocuments() {
	body, err := json.Marshal(map[string]int{"age_min": 21})
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, "/documents/scan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp ScanResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.False(resp.Age, "requested requirement with no facts must scan false")
	s.True(resp.License, "unset requirements scan true")
	s.True(resp.Points)
}

func TestDocumentsHandlerSuite(t *testing.T) {
	suite.Run(t, new(DocumentsHandlerSuite))
}
