// Package httpapi exposes core.Core over the HTTP surface of spec §6:
// submit a job, poll its status, fetch its result, plus the
// supplemented admin listing and health check.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/charq/charq/internal/core"
	"github.com/charq/charq/internal/job"
)

// Server adapts core.Core to HTTP.
type Server struct {
	core *core.Core
	log  *slog.Logger
	mux  *mux.Router
}

// New builds a Server with all routes registered.
func New(c *core.Core, log *slog.Logger) *Server {
	s := &Server{core: c, log: log.With("component", "httpapi")}
	r := mux.NewRouter()
	r.HandleFunc("/jobs", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/jobs", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/result", s.handleResult).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.mux = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type submitResponse struct {
	JobID  string     `json:"job_id"`
	Status job.Status `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// maxUploadBytes bounds the multipart request itself, independent of
// core.Core's MAX_TEXT_BYTES check, so a pathologically large request
// never forces the server to buffer an unbounded amount of memory
// before core ever gets a chance to reject it. It is deliberately
// larger than any reasonable MAX_TEXT_BYTES to leave room for
// multipart boundary/header overhead around the file part.
const maxUploadBytes = 16 << 20 // 16 MiB

// handleSubmit implements POST /jobs: a multipart/form-data request
// carrying the job text in its "file" field.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed multipart request")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `missing multipart field "file"`)
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	id, err := s.core.Submit(r.Context(), string(body))
	if err != nil {
		if errors.Is(err, core.ErrTextTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		if errors.Is(err, core.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("submit failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{JobID: id, Status: job.Pending})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	j, err := s.core.StatusOf(r.Context(), id)
	if err != nil {
		s.writeLookupErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j.View())
}

type resultResponse struct {
	Status     job.Status `json:"status"`
	Characters *int       `json:"characters,omitempty"`
	Attempts   uint32     `json:"attempts,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := s.core.ResultOf(r.Context(), id)
	if err != nil {
		s.writeLookupErr(w, err)
		return
	}

	switch res.Kind {
	case core.ResultDone:
		writeJSON(w, http.StatusOK, resultResponse{Status: res.Status, Characters: res.Characters})
	case core.ResultFailed:
		writeJSON(w, http.StatusConflict, resultResponse{Status: res.Status, Attempts: res.Attempts, Error: res.Error})
	default:
		writeJSON(w, http.StatusAccepted, resultResponse{Status: res.Status})
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	status := job.Unknown
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := job.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}

	jobs, err := s.core.ListByStatus(r.Context(), status, 100)
	if err != nil {
		s.log.Error("list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]job.View, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, j.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) writeLookupErr(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.log.Error("lookup failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
