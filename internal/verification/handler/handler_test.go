package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"veripass/internal/pki"
	"veripass/internal/verification"
	"veripass/internal/verification/store"
	"veripass/pkg/testutil"
)

type stubService struct {
	session *verification.Session
	err     error
	lastReq verification.VerifyRequest
}

func (s *stubService) Verify(_ context.Context, req verification.VerifyRequest) (*verification.Session, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

type HandlerSuite struct {
	suite.Suite
	service *stubService
	store   *store.MemoryStore
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &stubService{}
	s.store = store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, s.store, logger).Register(s.router)
}

func (s *HandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decodeError(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (s *HandlerSuite) newCompletedSession() *verification.Session {
	doc, err := verification.NewSecurityObjectDocument([]byte{0x30, 0x01, 0x00})
	s.Require().NoError(err)
	s.Require().NoError(doc.SetHashAlgorithm(pki.SHA256))
	s.Require().NoError(doc.SetSignatureAlgorithm("SHA256withECDSA"))

	group, err := verification.NewDataGroup(1, []byte("mrz data"))
	s.Require().NoError(err)

	session, err := verification.NewSession(doc, []*verification.DataGroup{group}, verification.RequestMetadata{})
	s.Require().NoError(err)

	now := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	session.MarkStarted(now)
	session.AppendAudit(verification.AuditStarted(verification.StepVerificationStarted, now, "passive authentication started"))
	session.AppendAudit(verification.AuditCompleted(verification.StepCertificateChain, now.Add(5*time.Millisecond),
		"certificate chain validated", 5*time.Millisecond))
	s.Require().NoError(session.RecordResult(verification.StatusValid, verification.NewResult(), now.Add(80*time.Millisecond)))
	return session
}

func (s *HandlerSuite) TestVerifyReturnsSession() {
	session := s.newCompletedSession()
	s.service.session = session

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/verifications", VerifyRequest{
		SOD:        []byte{0x30, 0x01, 0x00},
		DataGroups: []DataGroupPayload{{Number: 1, Content: []byte("mrz data")}},
	})
	req.Header.Set("X-Requester-ID", "border-control-7")
	rec := s.serve(req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	var resp SessionResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(session.ID().String(), resp.ID)
	s.Equal("VALID", resp.Status)
	s.Equal("SHA-256", resp.HashAlgorithm)
	s.Equal("SHA256withECDSA", resp.SignatureAlgorithm)
	s.Require().Len(resp.DataGroups, 1)
	s.Equal(1, resp.DataGroups[0].Number)
	s.Empty(resp.Findings)
	s.Equal(int64(80), resp.DurationMillis)

	s.Equal("border-control-7", s.service.lastReq.Metadata.RequesterID)
	s.Require().Len(s.service.lastReq.DataGroups, 1)
	s.Equal([]byte("mrz data"), s.service.lastReq.DataGroups[0].Content)
}

func (s *HandlerSuite) TestVerifyRejectsMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/v1/verifications", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := s.serve(req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("bad_request", s.decodeError(rec)["error"])
}

func (s *HandlerSuite) TestVerifyValidation() {
	cases := []struct {
		name    string
		request VerifyRequest
	}{
		{"missing sod", VerifyRequest{
			DataGroups: []DataGroupPayload{{Number: 1, Content: []byte("x")}},
		}},
		{"no data groups", VerifyRequest{SOD: []byte{0x30}}},
		{"data group number out of range", VerifyRequest{
			SOD:        []byte{0x30},
			DataGroups: []DataGroupPayload{{Number: 17, Content: []byte("x")}},
		}},
		{"empty data group content", VerifyRequest{
			SOD:        []byte{0x30},
			DataGroups: []DataGroupPayload{{Number: 1}},
		}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/verifications", tc.request))
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal("bad_request", s.decodeError(rec)["error"])
		})
	}
}

func (s *HandlerSuite) TestVerifyConstructionErrorIsBadRequest() {
	s.service.err = verification.ErrInvalidSODFormat

	rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/verifications", VerifyRequest{
		SOD:        []byte{0x02, 0x01, 0x00},
		DataGroups: []DataGroupPayload{{Number: 1, Content: []byte("x")}},
	}))

	s.Equal(http.StatusBadRequest, rec.Code)
	body := s.decodeError(rec)
	s.Equal("bad_request", body["error"])
	s.Contains(body["message"], "security object")
}

func (s *HandlerSuite) TestGetSession() {
	session := s.newCompletedSession()
	s.Require().NoError(s.store.Save(context.Background(), session))

	rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/v1/verifications/"+session.ID().String()))

	s.Equal(http.StatusOK, rec.Code)
	var resp SessionResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(session.ID().String(), resp.ID)
	s.Equal("VALID", resp.Status)
	s.Require().NotNil(resp.CompletedAt)
}

func (s *HandlerSuite) TestGetSessionNotFound() {
	rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet,
		"/v1/verifications/1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"))

	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", s.decodeError(rec)["error"])
}

func (s *HandlerSuite) TestGetSessionRejectsMalformedID() {
	rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/v1/verifications/not-a-uuid"))

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("bad_request", s.decodeError(rec)["error"])
}

func (s *HandlerSuite) TestGetAuditLog() {
	session := s.newCompletedSession()
	s.Require().NoError(s.store.Save(context.Background(), session))

	rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet,
		"/v1/verifications/"+session.ID().String()+"/audit"))

	s.Equal(http.StatusOK, rec.Code)
	var resp struct {
		SessionID string               `json:"session_id"`
		Entries   []AuditEntryResponse `json:"entries"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(session.ID().String(), resp.SessionID)
	s.Require().Len(resp.Entries, 2)
	s.Equal(string(verification.StepVerificationStarted), resp.Entries[0].Step)
	s.Nil(resp.Entries[0].ExecutionTimeMs)
	s.Require().NotNil(resp.Entries[1].ExecutionTimeMs)
	s.Equal(int64(5), *resp.Entries[1].ExecutionTimeMs)
}
