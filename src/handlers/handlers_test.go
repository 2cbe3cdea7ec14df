package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/username/cryptotax/src/ledger"
	"github.com/username/cryptotax/src/models"
	"github.com/username/cryptotax/src/processors"
	"github.com/username/cryptotax/src/security"
	"github.com/username/cryptotax/src/services"
	"golang.org/x/time/rate"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testUserID = uuid.MustParse("6f1c2a8e-3b4d-4e5f-8a9b-0c1d2e3f4a5b").String()

type fakeReportService struct {
	report     models.TaxReport
	skipped    []models.SkippedEvent
	err        error
	batchUsers []string
}

func (f *fakeReportService) GetTaxReport(ctx context.Context, userID string, taxYear int) (*models.TaxReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := f.report
	r.TaxYear = taxYear
	return &r, nil
}

func (f *fakeReportService) Compute(ctx context.Context, userID string, taxYear int) (*services.Computation, error) {
	return &services.Computation{Report: f.report, Skipped: f.skipped}, f.err
}

func (f *fakeReportService) ComputeBatch(ctx context.Context, userIDs []string, taxYear int) ([]services.UserReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batchUsers = userIDs
	out := make([]services.UserReport, len(userIDs))
	for i, id := range userIDs {
		out[i] = services.UserReport{UserID: id, Report: f.report}
	}
	return out, nil
}

func (f *fakeReportService) Skipped(ctx context.Context, userID string, taxYear int) ([]models.SkippedEvent, error) {
	return f.skipped, f.err
}

func (f *fakeReportService) InvalidateUserCache(userID string) {}

func sampleReport() models.TaxReport {
	return models.TaxReport{
		TaxYear: 2023,
		Summary: models.ReportSummary{
			TotalTransactions:     3,
			TaxableEvents:         1,
			ShortTermCapitalGains: decimal.NewFromInt(50),
		},
		CapitalGains: models.CapitalGains{
			ShortTerm: models.GainBucket{TotalGain: decimal.NewFromInt(50), Events: []models.TaxEvent{}},
			LongTerm:  models.GainBucket{Events: []models.TaxEvent{}},
		},
		Recommendations: []string{},
	}
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := security.NewAuthService(testSecret).GenerateToken(sub, role, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + tok
}

func newReportMux(svc services.TaxReportService) http.Handler {
	h := NewTaxReportHandler(svc)
	auth := NewAuthMiddleware(security.NewAuthService(testSecret))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tax-report", auth.Require(h.HandleGetTaxReport))
	mux.HandleFunc("GET /api/tax-report/skipped", auth.Require(h.HandleGetSkipped))
	mux.HandleFunc("POST /api/tax-report/batch", auth.Require(h.HandleBatch))
	return mux
}

func TestAuthMiddlewareRejects(t *testing.T) {
	g := NewGomegaWithT(t)
	mux := newReportMux(&fakeReportService{report: sampleReport()})

	for name, header := range map[string]string{
		"missing":      "",
		"empty bearer": "Bearer ",
		"garbage":      "Bearer abc.def.ghi",
		"non uuid sub": token(t, "42", ""),
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/tax-report?year=2023", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		g.Expect(rr.Code).To(Equal(http.StatusUnauthorized), name)
	}
}

func TestGetTaxReportWithETag(t *testing.T) {
	g := NewGomegaWithT(t)
	mux := newReportMux(&fakeReportService{report: sampleReport()})

	req := httptest.NewRequest(http.MethodGet, "/api/tax-report?year=2023", nil)
	req.Header.Set("Authorization", token(t, testUserID, ""))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	g.Expect(rr.Code).To(Equal(http.StatusOK))
	etag := rr.Header().Get("ETag")
	g.Expect(etag).To(HavePrefix(`"`))
	g.Expect(rr.Header().Get("Cache-Control")).To(Equal("no-cache, private"))

	var body map[string]interface{}
	g.Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
	g.Expect(body).To(HaveKey("summary"))
	g.Expect(body["summary"].(map[string]interface{})["shortTermCapitalGains"]).To(BeNumerically("==", 50))

	req = httptest.NewRequest(http.MethodGet, "/api/tax-report?year=2023", nil)
	req.Header.Set("Authorization", token(t, testUserID, ""))
	req.Header.Set("If-None-Match", etag)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	g.Expect(rr.Code).To(Equal(http.StatusNotModified))
	g.Expect(rr.Body.Len()).To(Equal(0))
}

func TestGetTaxReportYearValidation(t *testing.T) {
	g := NewGomegaWithT(t)
	mux := newReportMux(&fakeReportService{report: sampleReport()})

	for _, q := range []string{"", "?year=abc", "?year=2008", fmt.Sprintf("?year=%d", time.Now().Year()+2)} {
		req := httptest.NewRequest(http.MethodGet, "/api/tax-report"+q, nil)
		req.Header.Set("Authorization", token(t, testUserID, ""))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		g.Expect(rr.Code).To(Equal(http.StatusBadRequest), q)
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	g := NewGomegaWithT(t)
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: db down", ledger.ErrDataUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: 1999", services.ErrInvalidTaxYear), http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		mux := newReportMux(&fakeReportService{err: tt.err})
		req := httptest.NewRequest(http.MethodGet, "/api/tax-report?year=2023", nil)
		req.Header.Set("Authorization", token(t, testUserID, ""))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		g.Expect(rr.Code).To(Equal(tt.status), tt.err.Error())
		g.Expect(rr.Body.String()).To(ContainSubstring(`"error"`))
	}
}

func TestGetSkipped(t *testing.T) {
	g := NewGomegaWithT(t)
	skipped := []models.SkippedEvent{{
		TransactionID: "d1",
		Asset:         "ETH",
		OccurredAt:    time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		Reason:        models.SkipNoMatchingLot,
	}}
	mux := newReportMux(&fakeReportService{skipped: skipped})

	req := httptest.NewRequest(http.MethodGet, "/api/tax-report/skipped?year=2023", nil)
	req.Header.Set("Authorization", token(t, testUserID, ""))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	g.Expect(rr.Code).To(Equal(http.StatusOK))
	g.Expect(rr.Body.String()).To(ContainSubstring(`"reason":"no_matching_lot"`))
	g.Expect(rr.Body.String()).To(ContainSubstring(`"taxYear":2023`))
}

func TestBatchRequiresAdmin(t *testing.T) {
	g := NewGomegaWithT(t)
	svc := &fakeReportService{report: sampleReport()}
	mux := newReportMux(svc)
	other := uuid.NewString()
	body := fmt.Sprintf(`{"userIds": [%q, %q], "taxYear": 2023}`, testUserID, strings.ToUpper(other))

	req := httptest.NewRequest(http.MethodPost, "/api/tax-report/batch", strings.NewReader(body))
	req.Header.Set("Authorization", token(t, testUserID, ""))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	g.Expect(rr.Code).To(Equal(http.StatusForbidden))

	req = httptest.NewRequest(http.MethodPost, "/api/tax-report/batch", strings.NewReader(body))
	req.Header.Set("Authorization", token(t, testUserID, security.RoleAdmin))
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	g.Expect(rr.Code).To(Equal(http.StatusOK))
	g.Expect(svc.batchUsers).To(Equal([]string{testUserID, other}))

	var resp struct {
		TaxYear int                   `json:"taxYear"`
		Reports []services.UserReport `json:"reports"`
	}
	g.Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
	g.Expect(resp.Reports).To(HaveLen(2))
}

func TestBatchRejectsBadBodies(t *testing.T) {
	g := NewGomegaWithT(t)
	mux := newReportMux(&fakeReportService{report: sampleReport()})

	for _, body := range []string{
		`not json`,
		`{"userIds": [], "taxYear": 2023}`,
		`{"userIds": ["nope"], "taxYear": 2023}`,
		fmt.Sprintf(`{"userIds": [%q], "taxYear": 1990}`, testUserID),
		fmt.Sprintf(`{"userIds": [%q], "taxYear": 2023, "extra": true}`, testUserID),
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/tax-report/batch", strings.NewReader(body))
		req.Header.Set("Authorization", token(t, testUserID, security.RoleAdmin))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		g.Expect(rr.Code).To(Equal(http.StatusBadRequest), body)
	}
}

type fakeImportService struct {
	userID string
	source string
	body   string
	err    error
}

func (f *fakeImportService) Import(ctx context.Context, userID, source string, r io.Reader) (*services.ImportResult, error) {
	data, _ := io.ReadAll(r)
	f.userID, f.source, f.body = userID, source, string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &services.ImportResult{Source: source, Rows: 1, Inserted: 1, RowErrors: []processors.RowError{}}, nil
}

func multipartBody(t *testing.T, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="ledger"`)
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.Close()
	return buf, mw.FormDataContentType()
}

func newImportMux(svc services.ImportService) http.Handler {
	h := NewImportHandler(svc, 1<<20)
	auth := NewAuthMiddleware(security.NewAuthService(testSecret))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transactions/import", auth.Require(h.HandleImport))
	return mux
}

func TestImportHandler(t *testing.T) {
	g := NewGomegaWithT(t)
	svc := &fakeImportService{}
	mux := newImportMux(svc)

	csvData := "occurredAt,type,asset,amount\n2023-01-01,receive,ETH,1\n"
	body, ct := multipartBody(t, "text/csv", csvData)
	req := httptest.NewRequest(http.MethodPost, "/api/transactions/import?source=csv", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", token(t, testUserID, ""))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	g.Expect(rr.Code).To(Equal(http.StatusOK))
	g.Expect(svc.userID).To(Equal(testUserID))
	g.Expect(svc.source).To(Equal("csv"))
	g.Expect(svc.body).To(Equal(csvData))
	g.Expect(rr.Body.String()).To(ContainSubstring(`"inserted":1`))
}

func TestImportHandlerRejects(t *testing.T) {
	g := NewGomegaWithT(t)
	tests := []struct {
		name, query, contentType, content string
		err                               error
		status                            int
	}{
		{"json declared for csv", "?source=csv", "application/json", "[]", nil, http.StatusBadRequest},
		{"binary content", "?source=csv", "text/csv", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", nil, http.StatusBadRequest},
		{"unknown source", "?source=xlsx", "", "a,b\n", nil, http.StatusBadRequest},
		{"parse failure", "?source=json", "application/json", "{", fmt.Errorf("%w: bad", services.ErrParsingFailed), http.StatusBadRequest},
		{"store failure", "?source=csv", "text/csv", "a,b\n", fmt.Errorf("%w: disk", services.ErrProcessingFailed), http.StatusInternalServerError},
		{"reused id", "?source=csv", "text/csv", "a,b\n", fmt.Errorf("%w: a1", services.ErrImportConflict), http.StatusConflict},
	}
	for _, tt := range tests {
		mux := newImportMux(&fakeImportService{err: tt.err})
		body, ct := multipartBody(t, tt.contentType, tt.content)
		req := httptest.NewRequest(http.MethodPost, "/api/transactions/import"+tt.query, body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", token(t, testUserID, ""))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		g.Expect(rr.Code).To(Equal(tt.status), tt.name)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	g := NewGomegaWithT(t)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	h := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	g.Expect(rr.Code).To(Equal(http.StatusOK))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	g.Expect(rr.Code).To(Equal(http.StatusTooManyRequests))
}

func TestCORSMiddleware(t *testing.T) {
	g := NewGomegaWithT(t)
	h := CORSMiddleware([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/tax-report", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	g.Expect(rr.Code).To(Equal(http.StatusNoContent))
	g.Expect(rr.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))

	req = httptest.NewRequest(http.MethodGet, "/api/tax-report", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	g.Expect(rr.Code).To(Equal(http.StatusOK))
	g.Expect(rr.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
}
