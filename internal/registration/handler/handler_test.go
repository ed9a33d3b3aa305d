package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"weict/internal/platform/email"
	"weict/internal/registration/models"
	"weict/internal/registration/service"
	"weict/internal/registration/store"
	"weict/pkg/testutil"
)

// recordingSender captures messages instead of delivering them.
type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Provider() string { return "recording" }

func (s *recordingSender) messages() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.Message(nil), s.sent...)
}

// HandlerSuite exercises both route policies against real in-memory
// components.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	store  *store.InMemoryStore
	sender *recordingSender
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.sender = &recordingSender{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc := service.New(s.store, s.sender, service.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, OpenPolicy("*"), logger).Register(r)
	New(svc, PagesPolicy("https://prothomaa.github.io"), logger).Register(r)
	s.router = r
}

func validBody() map[string]string {
	return map[string]string{"name": "A", "email": "a@b.com", "phone": "123", "institution": "X", "topic": "AI"}
}

func (s *HandlerSuite) rowCount() int {
	n, err := s.store.Count(context.Background())
	s.Require().NoError(err)
	return n
}

// =============================================================================
// POST
// =============================================================================

func (s *HandlerSuite) TestSubmit_OpenRouteSuccess() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", validBody()))

	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"message":"Registration successful"}`, rr.Body.String())

	rows := s.store.All()
	s.Require().Len(rows, 1)
	s.Equal("AI", rows[0].Topic)
	s.Equal("a@b.com", rows[0].Email)
	s.NotZero(rows[0].ID)
	s.False(rows[0].RegisteredAt.IsZero())

	sent := s.sender.messages()
	s.Require().Len(sent, 1)
	s.Equal([]string{"a@b.com"}, sent[0].To)
	s.Equal("WE-ICT 2026 Registration Confirmed", sent[0].Subject)
	s.Contains(sent[0].HTML, "Registration Successful!")
}

func (s *HandlerSuite) TestSubmit_PagesRouteSuccess() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/resister", validBody()))

	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"message":"Success"}`, rr.Body.String())
	s.Equal(1, s.rowCount())

	sent := s.sender.messages()
	s.Require().Len(sent, 1)
	s.Contains(sent[0].HTML, "<p>Dear A,</p>")
}

func (s *HandlerSuite) TestSubmit_MissingFieldIsRejected() {
	for _, field := range []string{"name", "email", "phone", "institution", "topic"} {
		s.Run("missing "+field, func() {
			body := validBody()
			delete(body, field)

			rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", body))

			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "Missing required fields")
		})
		s.Run("empty "+field, func() {
			body := validBody()
			body[field] = ""

			rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/resister", body))

			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "Missing required fields")
		})
	}
	s.Equal(0, s.rowCount(), "no row inserted")
	s.Empty(s.sender.messages(), "no email sent")
}

func (s *HandlerSuite) TestSubmit_WhitespaceOnlyFieldIsRejected() {
	body := validBody()
	body["name"] = "  \t "

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", body))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "Missing required fields")
	s.Equal(0, s.rowCount())
	s.Empty(s.sender.messages())
}

func (s *HandlerSuite) TestSubmit_PaddedValuesAreStoredAsSent() {
	body := validBody()
	body["name"] = " A "
	body["topic"] = "AI\n"

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", body))

	testutil.AssertStatusOK(s.T(), rr)
	rows := s.store.All()
	s.Require().Len(rows, 1)
	s.Equal(" A ", rows[0].Name)
	s.Equal("AI\n", rows[0].Topic)
}

func (s *HandlerSuite) TestSubmit_TopicOmitted() {
	body := map[string]string{"name": "A", "email": "a@b.com", "phone": "123", "institution": "X"}
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", body))

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	resp := testutil.UnmarshalResponse[ErrorResponse](s.T(), rr)
	s.Equal(models.ErrMissingFields, resp.Error)
	s.Empty(resp.Details)
	s.Equal(0, s.rowCount())
}

func (s *HandlerSuite) TestSubmit_InvalidBodies() {
	for name, body := range map[string]string{
		"empty":     "",
		"malformed": `{"name":`,
		"not json":  "name=A&email=a@b.com",
		"null":      "null",
	} {
		s.Run(name, func() {
			rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/register", body))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "Missing required fields")
		})
	}
	s.Equal(0, s.rowCount())
}

func (s *HandlerSuite) TestSubmit_OverlongFieldIsRejected() {
	body := validBody()
	body["phone"] = strings.Repeat("9", models.MaxPhoneLength+1)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", body))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "phone exceeds maximum length")
	s.Equal(0, s.rowCount())
	s.Empty(s.sender.messages())
}

func (s *HandlerSuite) TestSubmit_ResubmissionCreatesSecondRow() {
	for i := 0; i < 2; i++ {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", validBody()))
		testutil.AssertStatusOK(s.T(), rr)
	}
	s.Equal(2, s.rowCount())
	s.Len(s.sender.messages(), 2)
}

// TestSubmit_EmailFailureKeepsRow locks in the non-atomic behavior: the row
// stays although the client is told the request failed.
func (s *HandlerSuite) TestSubmit_EmailFailureKeepsRow() {
	s.sender.err = errors.New("resend: 403 forbidden")

	s.Run("open route exposes details", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", validBody()))

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		resp := testutil.UnmarshalResponse[ErrorResponse](s.T(), rr)
		s.Equal("Database or Email Service Error", resp.Error)
		s.Contains(resp.Details, "resend: 403 forbidden")
	})

	s.Run("pages route hides details", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/resister", validBody()))

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.JSONEq(`{"error":"Server Error"}`, rr.Body.String())
	})

	s.Equal(2, s.rowCount(), "rows persist despite the 500")
}

// =============================================================================
// OPTIONS and other methods
// =============================================================================

func (s *HandlerSuite) TestOptions_ReturnsEmptyOK() {
	for _, path := range []string{"/api/register", "/api/resister"} {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodOptions, path))

		testutil.AssertStatusOK(s.T(), rr)
		s.Empty(rr.Body.String())
	}
	s.Equal(0, s.rowCount())
}

const (
	openMethods  = "GET, OPTIONS, PATCH, DELETE, POST, PUT"
	openHeaders  = "X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version"
	pagesOrigin  = "https://prothomaa.github.io"
	pagesMethods = "POST, OPTIONS"
	pagesHeaders = "Content-Type"
)

func (s *HandlerSuite) assertOpenCORS(rr *httptest.ResponseRecorder) {
	s.T().Helper()
	testutil.AssertAllowOrigin(s.T(), rr, "*")
	s.Equal(openMethods, rr.Header().Get("Access-Control-Allow-Methods"))
	s.Equal(openHeaders, rr.Header().Get("Access-Control-Allow-Headers"))
	s.Equal("true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func (s *HandlerSuite) assertPagesCORS(rr *httptest.ResponseRecorder) {
	s.T().Helper()
	testutil.AssertAllowOrigin(s.T(), rr, pagesOrigin)
	s.Equal(pagesMethods, rr.Header().Get("Access-Control-Allow-Methods"))
	s.Equal(pagesHeaders, rr.Header().Get("Access-Control-Allow-Headers"))
	s.Empty(rr.Header().Get("Access-Control-Allow-Credentials"))
}

func preflight(t *testing.T, path, origin string) *http.Request {
	req := testutil.NewRequest(t, http.MethodOptions, path)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	return req
}

func (s *HandlerSuite) TestPreflight_OpenRoute() {
	s.Run("without requested headers", func() {
		rr := testutil.DoRequest(s.router, preflight(s.T(), "/api/register", "https://anywhere.example"))

		testutil.AssertStatusOK(s.T(), rr)
		s.Empty(rr.Body.String())
		s.assertOpenCORS(rr)
	})

	s.Run("with requested headers", func() {
		req := preflight(s.T(), "/api/register", "https://anywhere.example")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		s.assertOpenCORS(rr)
	})
	s.Equal(0, s.rowCount())
}

func (s *HandlerSuite) TestPreflight_PagesRoute() {
	for _, origin := range []string{pagesOrigin, "https://evil.example"} {
		s.Run(origin, func() {
			rr := testutil.DoRequest(s.router, preflight(s.T(), "/api/resister", origin))

			testutil.AssertStatusOK(s.T(), rr)
			s.Empty(rr.Body.String())
			s.assertPagesCORS(rr)
		})
	}
	s.Equal(0, s.rowCount())
}

func (s *HandlerSuite) TestCORSHeadersWithoutOrigin() {
	s.Run("bare OPTIONS", func() {
		s.assertOpenCORS(testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodOptions, "/api/register")))
		s.assertPagesCORS(testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodOptions, "/api/resister")))
	})

	s.Run("method not allowed", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/resister"))
		testutil.AssertStatus(s.T(), rr, http.StatusMethodNotAllowed)
		s.assertPagesCORS(rr)
	})

	s.Run("bad request", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", map[string]string{}))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		s.assertOpenCORS(rr)
	})
}

func (s *HandlerSuite) TestActualRequestCarriesCORSHeaders() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/resister", validBody())
	req.Header.Set("Origin", pagesOrigin)

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	s.assertPagesCORS(rr)

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/register", validBody())
	req.Header.Set("Origin", "https://anywhere.example")

	rr = testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	s.assertOpenCORS(rr)
}

func (s *HandlerSuite) TestOtherMethods_OpenRoute() {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), method, "/api/register"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
	s.Equal(0, s.rowCount())
}

func (s *HandlerSuite) TestOtherMethods_PagesRoute() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/resister"))

	testutil.AssertStatus(s.T(), rr, http.StatusMethodNotAllowed)
	s.Equal("Method Not Allowed", rr.Body.String())
	s.Contains(rr.Header().Get("Content-Type"), "text/plain")
	s.Equal(0, s.rowCount())
}

// =============================================================================
// Policies
// =============================================================================

func (s *HandlerSuite) TestPolicyDefaults() {
	open := OpenPolicy("")
	s.Equal([]string{"*"}, open.CORS.AllowedOrigins)
	s.Equal("detailed", open.Template.Name())

	pages := PagesPolicy("")
	s.Equal([]string{"https://prothomaa.github.io"}, pages.CORS.AllowedOrigins)
	s.Equal("compact", pages.Template.Name())
	s.False(pages.ExposeErrorDetails)
}

// TestRegistrationScenario walks the landing-page flow end to end against
// one shared store.
func TestRegistrationScenario(t *testing.T) {
	st := store.NewInMemory()
	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := chi.NewRouter()
	New(service.New(st, sender, service.WithLogger(logger)), OpenPolicy("*"), logger).Register(r)

	t.Run("complete form is stored and confirmed", func(t *testing.T) {
		body := map[string]string{"name": "A", "email": "a@b.com", "phone": "123", "institution": "X", "topic": "AI"}
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/api/register", body))

		testutil.AssertStatusOK(t, rr)
		rows := st.All()
		require.Len(t, rows, 1)
		assert.Equal(t, "AI", rows[0].Topic)
		sent := sender.messages()
		require.Len(t, sent, 1)
		assert.Equal(t, []string{"a@b.com"}, sent[0].To)
		assert.Equal(t, "WE-ICT 2026 Registration Confirmed", sent[0].Subject)
	})

	t.Run("form without topic leaves the table unchanged", func(t *testing.T) {
		body := map[string]string{"name": "B", "email": "b@b.com", "phone": "456", "institution": "Y"}
		rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/api/register", body))

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, models.ErrMissingFields)
		assert.Len(t, st.All(), 1)
		assert.Len(t, sender.messages(), 1)
	})
}

var _ Service = (*service.Service)(nil)
