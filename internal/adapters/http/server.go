package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"splitverify/internal/adapters/fileingest"
	"splitverify/internal/domain"
	"splitverify/internal/ports"
	"splitverify/internal/services/distributor"
	"splitverify/internal/services/sessions"
	"splitverify/internal/services/workflow"
	"splitverify/internal/workers/ingestrunner"
)

// Server exposes the split verification workflow over HTTP.
type Server struct {
	sessions       ports.Sessions
	gatherer       prometheus.Gatherer
	limiter        *RateLimiter
	maxUploadBytes int64
	logger         *zap.Logger
	now            func() time.Time
}

type Options struct {
	Gatherer       prometheus.Gatherer
	Limiter        *RateLimiter
	MaxUploadBytes int64
	Logger         *zap.Logger
}

func New(svc ports.Sessions, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	return &Server{
		sessions:       svc,
		gatherer:       opts.Gatherer,
		limiter:        opts.Limiter,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         opts.Logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.postSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/sample", s.postSample)
			r.Post("/sheet", s.postSheet)
			r.With(s.uploadLimit).Post("/upload", s.postUpload)
			r.Get("/jobs/{jobId}", s.getJob)
			r.Post("/autofix", s.postAutoFix)
			r.Post("/verify", s.postVerify)
			r.Post("/distribution", s.postDistribution)
			r.Post("/reset", s.postReset)
			r.Get("/report", s.getReport)
		})
	})
	return r
}

func (s *Server) uploadLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(next)
}

type sessionResponse struct {
	ID uuid.UUID `json:"id"`
	workflow.Snapshot
	View workflow.View `json:"view"`
}

type reportResponse struct {
	SessionID  uuid.UUID         `json:"sessionId"`
	ExportedAt time.Time         `json:"exportedAt"`
	Report     workflow.Snapshot `json:"report"`
}

type jobAcceptedResponse struct {
	JobID     uuid.UUID `json:"jobId"`
	SessionID uuid.UUID `json:"sessionId"`
	Status    string    `json:"status"`
}

type distributionRequest struct {
	GrossAmount *float64 `json:"grossAmount"`
}

type sheetRequest struct {
	Contributors []domain.Contributor `json:"contributors"`
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postSession(w http.ResponseWriter, r *http.Request) {
	id, snap, err := s.sessions.Create(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(id, snap))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id uuid.UUID) (workflow.Snapshot, error) {
		return s.sessions.Get(r.Context(), id)
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postSample(w http.ResponseWriter, r *http.Request) {
	var kind *string
	if err := runtime.BindQueryParameter("form", true, false, "kind", r.URL.Query(), &kind); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sample := domain.SamplePerfect
	if kind != nil {
		sample = domain.SampleKind(*kind)
	}
	if _, err := domain.Sample(sample); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withSession(w, r, func(id uuid.UUID) (workflow.Snapshot, error) {
		return s.sessions.LoadSample(r.Context(), id, sample)
	})
}

func (s *Server) postSheet(w http.ResponseWriter, r *http.Request) {
	var req sheetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUploadBytes)).Decode(&req); err != nil {
		writeError(w, bodyStatus(err), "invalid sheet body: "+err.Error())
		return
	}
	s.withSession(w, r, func(id uuid.UUID) (workflow.Snapshot, error) {
		return s.sessions.LoadSheet(r.Context(), id, domain.NewSplitSheet(req.Contributors))
	})
}

func (s *Server) postUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var wait *bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	upload, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, bodyStatus(err), err.Error())
		return
	}

	if wait != nil && *wait {
		snap, err := s.sessions.UploadAndWait(r.Context(), id, upload)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(id, snap))
		return
	}
	jobID, err := s.sessions.Upload(r.Context(), id, upload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+id.String()+"/jobs/"+jobID.String())
	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{JobID: jobID, SessionID: id, Status: string(ports.JobQueued)})
}

// readUpload accepts either a raw body or a multipart form with a "file" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (ports.Upload, error) {
	var filename *string
	if err := runtime.BindQueryParameter("form", true, false, "filename", r.URL.Query(), &filename); err != nil {
		return ports.Upload{}, err
	}
	body := http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	upload := ports.Upload{ContentType: r.Header.Get("Content-Type")}
	if filename != nil {
		upload.Filename = *filename
	}

	mediaType, _, _ := mime.ParseMediaType(upload.ContentType)
	if mediaType == "multipart/form-data" {
		r.Body = body
		if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
			return ports.Upload{}, err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return ports.Upload{}, err
		}
		defer file.Close()
		payload, err := io.ReadAll(file)
		if err != nil {
			return ports.Upload{}, err
		}
		upload.Payload = payload
		upload.Filename = header.Filename
		upload.ContentType = header.Header.Get("Content-Type")
		return upload, nil
	}

	payload, err := io.ReadAll(body)
	if err != nil {
		return ports.Upload{}, err
	}
	upload.Payload = payload
	return upload, nil
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var jobID openapi_types.UUID
	if err := runtime.BindStyledParameterWithOptions("simple", "jobId", chi.URLParam(r, "jobId"), &jobID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.sessions.JobStatus(r.Context(), id, jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) postAutoFix(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id uuid.UUID) (workflow.Snapshot, error) {
		return s.sessions.AutoFix(r.Context(), id)
	})
}

func (s *Server) postVerify(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id uuid.UUID) (workflow.Snapshot, error) {
		return s.sessions.Verify(r.Context(), id)
	})
}

func (s *Server) postDistribution(w http.ResponseWriter, r *http.Request) {
	var req distributionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDistributionBytes)).Decode(&req); err != nil {
		writeError(w, bodyStatus(err), "invalid distribution body: "+err.Error())
		return
	}
	if req.GrossAmount == nil {
		writeError(w, http.StatusBadRequest, "grossAmount is required")
		return
	}
	s.withSession(w, r, func(id uuid.UUID) (workflow.Snapshot, error) {
		return s.sessions.Distribute(r.Context(), id, *req.GrossAmount)
	})
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id uuid.UUID) (workflow.Snapshot, error) {
		return s.sessions.Reset(r.Context(), id)
	})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{SessionID: id, ExportedAt: s.now(), Report: snap})
}

func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID) (workflow.Snapshot, error)) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := fn(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(id, snap))
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func newSessionResponse(id uuid.UUID, snap workflow.Snapshot) sessionResponse {
	return sessionResponse{ID: id, Snapshot: snap, View: snap.View()}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeError(w, code, err.Error())
}

// Distribution requests carry a single amount.
const maxDistributionBytes = 4 << 10

// bodyStatus maps a request body read or decode error.
func bodyStatus(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingestrunner.ErrSuperseded), workflow.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, distributor.ErrInvalidAmount),
		errors.Is(err, distributor.ErrInvalidTaxRate),
		errors.Is(err, sessions.ErrEmptyUpload):
		return http.StatusBadRequest
	case errors.Is(err, fileingest.ErrMalformed),
		errors.Is(err, fileingest.ErrEmpty),
		errors.Is(err, fileingest.ErrUnsupported):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
