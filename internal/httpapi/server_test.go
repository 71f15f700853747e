package httpapi_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"

	"github.com/charq/charq/internal/core"
	"github.com/charq/charq/internal/httpapi"
	"github.com/charq/charq/internal/migrate"
	"github.com/charq/charq/internal/queue"
	"github.com/charq/charq/internal/store/sqlite"
)

func newTestServer(t *testing.T) *httpapi.Server {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := migrate.Run(sqlDB); err != nil {
		t.Fatal(err)
	}
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	st := sqlite.New(db)
	q := queue.New(10)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := core.New(st, q, 1<<20, log) // MAX_TEXT_BYTES = 1 MiB
	return httpapi.New(c, log)
}

// newSubmitRequest builds the multipart/form-data POST /jobs request
// the handler expects, with the job text in its "file" field.
func newSubmitRequest(t *testing.T, text string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "job.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(text)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSubmitAndStatus(t *testing.T) {
	srv := newTestServer(t)

	req := newSubmitRequest(t, "héllo 世界")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var submitted struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatal(err)
	}
	if submitted.JobID == "" {
		t.Fatal("expected a non-empty job id")
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/jobs/"+submitted.JobID+"/status", nil)
	statusRec := httptest.NewRecorder()
	srv.ServeHTTP(statusRec, statusReq)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", statusRec.Code, statusRec.Body.String())
	}
}

func TestSubmitMissingFileFieldIsBadRequest(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("wrong_field", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusUnknownID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/doesnotexist/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestResultBeforeCompletionIsAccepted(t *testing.T) {
	srv := newTestServer(t)

	req := newSubmitRequest(t, "x")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var submitted struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatal(err)
	}

	// No worker is running against this store, so the job stays pending
	// and /result must report in-progress rather than a final shape.
	resultReq := httptest.NewRequest(http.MethodGet, "/jobs/"+submitted.JobID+"/result", nil)
	resultRec := httptest.NewRecorder()
	srv.ServeHTTP(resultRec, resultReq)

	if resultRec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resultRec.Code, resultRec.Body.String())
	}
}

// TestSubmitOverMaxTextBytesIsTooLarge exercises a 2 MiB upload against
// the 1 MiB MAX_TEXT_BYTES configured in newTestServer: the request is
// well within the server's raw multipart size guard, so the 413 must
// come from core's MAX_TEXT_BYTES check, not the transport-level cap.
func TestSubmitOverMaxTextBytesIsTooLarge(t *testing.T) {
	srv := newTestServer(t)

	oversized := bytes.Repeat([]byte("a"), 2<<20)
	req := newSubmitRequest(t, string(oversized))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestSubmitOverTransportCapIsTooLarge covers the outer guard: a
// request too large even for the transport-level multipart cap must
// also be rejected with 413.
func TestSubmitOverTransportCapIsTooLarge(t *testing.T) {
	srv := newTestServer(t)

	oversized := bytes.Repeat([]byte("a"), 17<<20)
	req := newSubmitRequest(t, string(oversized))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListByStatus(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		req := newSubmitRequest(t, "x")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=pending", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var views []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 pending jobs listed, got %d", len(views))
	}
}
