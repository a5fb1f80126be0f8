package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/bamarler/flaZK/internal/identity"
	"github.com/bamarler/flaZK/internal/platform/middleware"
	"github.com/bamarler/flaZK/internal/token"
)

type captureSender struct {
	sends chan string
}

func (c *captureSender) Send(_ context.Context, _ string, code string) error {
	c.sends <- code
	return nil
}

func (c *captureSender) wait(t *testing.T) string {
	t.Helper()
	select {
	case code := <-c.sends:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for code delivery")
		return ""
	}
}

type IdentityHandlerSuite struct {
	suite.Suite

	sender *captureSender
	tokens *token.Service
	router chi.Router
}

func (s *IdentityHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.sender = &captureSender{sends: make(chan string, 8)}
	s.tokens = token.NewService("test-signing-key", "flazk-test", time.Hour)

	svc := identity.NewService(
		identity.NewInMemoryCodeStore(),
		identity.NewInMemoryUserStore(),
		s.sender, s.tokens, logger,
	)
	h := New(svc, logger)

	s.router = chi.NewRouter()
	h.RegisterPublic(s.router)
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(s.tokens, logger))
		h.RegisterAuthed(r)
	})
}

func (s *IdentityHandlerSuite) doJSON(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		req.Header[key] = values
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *IdentityHandlerSuite) verify(phone, code string) VerifyCodeResponse {
	rec := s.doJSON(http.MethodPost, "/auth/verify-code", map[string]string{
		"phone": phone,
		"code":  code,
	}, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp VerifyCodeResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *IdentityHandlerSuite) TestSendCodeAccepted() {
	rec := s.doJSON(http.MethodPost, "/auth/send-code", map[string]string{"phone": "+15551230001"}, nil)
	s.Require().Equal(http.StatusAccepted, rec.Code)

	var resp SendCodeResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("pending", resp.Status)
	s.Len(s.sender.wait(s.T()), 6)
}

func (s *IdentityHandlerSuite) TestSendCodeInvalidPhone() {
	rec := s.doJSON(http.MethodPost, "/auth/send-code", map[string]string{"phone": "bogus"}, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *IdentityHandlerSuite) TestVerifyCodeReturnsCredential() {
	rec := s.doJSON(http.MethodPost, "/auth/send-code", map[string]string{"phone": "+15551230002"}, nil)
	s.Require().Equal(http.StatusAccepted, rec.Code)
	code := s.sender.wait(s.T())

	resp := s.verify("+15551230002", code)
	s.NotEmpty(resp.Token)

	userID, err := s.tokens.ValidateToken(context.Background(), resp.Token)
	s.Require().NoError(err)
	s.Equal(resp.UserID, userID.String())
}

func (s *IdentityHandlerSuite) TestVerifyCodeWrongCodeUnauthorized() {
	rec := s.doJSON(http.MethodPost, "/auth/send-code", map[string]string{"phone": "+15551230003"}, nil)
	s.Require().Equal(http.StatusAccepted, rec.Code)
	code := s.sender.wait(s.T())

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	rec = s.doJSON(http.MethodPost, "/auth/verify-code", map[string]string{
		"phone": "+15551230003",
		"code":  wrong,
	}, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *IdentityHandlerSuite) TestVerifyCodeMissingFields() {
	rec := s.doJSON(http.MethodPost, "/auth/verify-code", map[string]string{"phone": "+15551230004"}, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *IdentityHandlerSuite) TestMeRequiresBearer() {
	rec := s.doJSON(http.MethodGet, "/auth/me", nil, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *IdentityHandlerSuite) TestMeReturnsAuthenticatedUser() {
	rec := s.doJSON(http.MethodPost, "/auth/send-code", map[string]string{"phone": "+15551230005"}, nil)
	s.Require().Equal(http.StatusAccepted, rec.Code)
	cred := s.verify("+15551230005", s.sender.wait(s.T()))

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.Token)
	rec = s.doJSON(http.MethodGet, "/auth/me", nil, header)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp MeResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(cred.UserID, resp.UserID)
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}
