package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"mailscout/internal/ingest"
	"mailscout/internal/platform/logger"
	"mailscout/internal/platform/middleware"
	"mailscout/internal/resultstore"
)

type HandlerSuite struct {
	suite.Suite
	store  *resultstore.CSVStore
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	st, err := resultstore.Open(filepath.Join(s.T().TempDir(), "results.csv"), logger.Discard())
	s.Require().NoError(err)
	s.store = st
	s.router = s.newRouter(ingest.New(st, logger.Discard()), nil)
}

func (s *HandlerSuite) newRouter(svc Service, v middleware.TokenValidator) chi.Router {
	r := chi.NewRouter()
	New(svc, logger.Discard(), 1<<10, v).Register(r)
	return r
}

func (s *HandlerSuite) post(path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) summary(rec *httptest.ResponseRecorder) ingest.Summary {
	var sum ingest.Summary
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &sum))
	return sum
}

func (s *HandlerSuite) TestSingleRecord() {
	rec := s.post("/webhook", `[{"itemId":"c1","status":"success","emails":["john@x.com"]}]`)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(ingest.Summary{Accepted: 1}, s.summary(rec))
	_, err := uuid.Parse(rec.Header().Get(BatchIDHeader))
	s.NoError(err)

	items := s.store.List()
	s.Require().Len(items, 1)
	s.Equal("c1", items[0].ItemID)
	s.Equal([]string{"john@x.com"}, items[0].Emails)
}

func (s *HandlerSuite) TestSingleObjectBody() {
	rec := s.post("/webhook", `{"itemId":"c1","status":"success"}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(1, s.summary(rec).Accepted)
}

func (s *HandlerSuite) TestSignalHirePayload() {
	body := `[{
		"item": "https://www.linkedin.com/in/john-doe-12345678",
		"status": "success",
		"candidate": {
			"fullName": "John Doe",
			"contacts": [
				{"type": "email", "value": "john@doe-law.com"},
				{"type": "phone", "value": "+1 555 0100"},
				{"type": "email", "value": "jdoe@gmail.com"}
			]
		}
	}]`
	rec := s.post("/signalhire/webhook", body)
	s.Require().Equal(http.StatusOK, rec.Code)

	it, ok := s.store.Get("https://www.linkedin.com/in/john-doe-12345678")
	s.Require().True(ok)
	s.Equal("John Doe", it.FullName)
	s.Equal([]string{"john@doe-law.com", "jdoe@gmail.com"}, it.Emails)
	s.Equal([]string{"+1 555 0100"}, it.Phones)
	s.Equal("https://www.linkedin.com/in/john-doe-12345678", it.LinkedIn)
}

func (s *HandlerSuite) TestSparseRedelivery() {
	s.Require().Equal(http.StatusOK, s.post("/webhook", `{"itemId":"c1","status":"success","emails":["john@x.com"]}`).Code)
	rec := s.post("/webhook", `{"itemId":"c1","linkedin":"https://linkedin.com/in/john"}`)

	s.Equal(ingest.Summary{Accepted: 1, Merged: 1}, s.summary(rec))
	it, _ := s.store.Get("c1")
	s.Equal([]string{"john@x.com"}, it.Emails)
	s.Equal("https://linkedin.com/in/john", it.LinkedIn)
}

func (s *HandlerSuite) TestMissingItemIDSkipped() {
	rec := s.post("/webhook", `[{"itemId":"c1"},{"itemId":"c2"},{"status":"success"},{"itemId":"c3"},{"itemId":"c4"}]`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(ingest.Summary{Accepted: 4, Skipped: 1}, s.summary(rec))
}

func (s *HandlerSuite) TestWrongTypedRecordSkipped() {
	rec := s.post("/webhook", `[{"itemId":"a","emails":["a@x.com"]},{"itemId":"b","emails":"b@x.com"},{"itemId":"c"},"junk"]`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(ingest.Summary{Accepted: 2, Skipped: 2}, s.summary(rec))

	_, ok := s.store.Get("b")
	s.False(ok)
	it, ok := s.store.Get("a")
	s.Require().True(ok)
	s.Equal([]string{"a@x.com"}, it.Emails)
}

func (s *HandlerSuite) TestMalformedJSON() {
	for _, body := range []string{`[{"itemId":`, ``, `"c1"`, `{"itemId":`, `42`} {
		rec := s.post("/webhook", body)
		s.Equal(http.StatusBadRequest, rec.Code, body)
		s.Contains(rec.Body.String(), `"error":"bad_request"`)
	}
	s.Empty(s.store.List())
}

func (s *HandlerSuite) TestBodyTooLarge() {
	rec := s.post("/webhook", `[{"itemId":"`+strings.Repeat("x", 2<<10)+`"}]`)
	s.Equal(http.StatusRequestEntityTooLarge, rec.Code)
}

func (s *HandlerSuite) TestStoreFailureIs500() {
	s.router = s.newRouter(failingService{}, nil)
	rec := s.post("/webhook", `[{"itemId":"c1"}]`)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.JSONEq(`{"error":"internal_error"}`, rec.Body.String())
}

func (s *HandlerSuite) TestBearerRequiredWhenConfigured() {
	s.router = s.newRouter(ingest.New(s.store, logger.Discard()), tokenValidator("secret-token"))

	s.Equal(http.StatusUnauthorized, s.post("/webhook", `[{"itemId":"c1"}]`).Code)
	s.Equal(http.StatusOK, s.post("/webhook", `[{"itemId":"c1"}]`, "Authorization", "Bearer secret-token").Code)
}

type failingService struct{}

func (failingService) Ingest(context.Context, []ingest.Record) (ingest.Summary, error) {
	return ingest.Summary{}, &resultstore.WriteError{Path: "results.csv", Op: "commit", Err: errors.New("disk full")}
}

type tokenValidator string

func (v tokenValidator) ValidateToken(token string) (*middleware.Principal, error) {
	if token != string(v) {
		return nil, errors.New("bad token")
	}
	return &middleware.Principal{Subject: "upstream"}, nil
}
