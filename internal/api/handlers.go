package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/auth-platform/file-upload/internal/chunkservice"
	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/observability"
	"github.com/auth-platform/file-upload/internal/uploadservice"
)

// Handlers implements the five HTTP operations of §6.
type Handlers struct {
	uploads   *uploadservice.Service
	chunks    *chunkservice.Service
	metrics   *observability.Metrics
	startedAt time.Time
}

// NewHandlers wires the HTTP layer over the Upload Service and Chunk
// Service. metrics may be nil in tests.
func NewHandlers(uploads *uploadservice.Service, chunks *chunkservice.Service, metrics *observability.Metrics) *Handlers {
	return &Handlers{uploads: uploads, chunks: chunks, metrics: metrics, startedAt: time.Now()}
}

type initRequest struct {
	FileName string            `json:"fileName"`
	FileSize int64             `json:"fileSize"`
	FileType string            `json:"fileType"`
	Checksum string            `json:"checksum"`
	Metadata map[string]string `json:"metadata"`
}

type initResponse struct {
	UploadID    string    `json:"uploadId"`
	ChunkSize   int64     `json:"chunkSize"`
	TotalChunks int       `json:"totalChunks"`
	UploadURL   string    `json:"uploadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// InitUpload handles POST /api/upload/init.
func (h *Handlers) InitUpload(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.New(domain.KindValidation, "malformed JSON body", err))
		return
	}

	result, err := h.uploads.Initialize(r.Context(), uploadservice.InitRequest{
		FileName:       req.FileName,
		DeclaredSize:   req.FileSize,
		DeclaredType:   req.FileType,
		ExpectedDigest: req.Checksum,
		Metadata:       req.Metadata,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordUploadError(string(domain.KindOf(err)))
		}
		observability.SetError(r.Context(), err)
		writeError(w, err)
		return
	}
	observability.AddEvent(r.Context(), "upload_initialized", map[string]string{"uploadId": result.SessionID})
	if h.metrics != nil {
		h.metrics.UploadSize.WithLabelValues(req.FileType).Observe(float64(req.FileSize))
		h.metrics.IncrementActiveSessions()
	}

	writeJSON(w, http.StatusCreated, initResponse{
		UploadID:    result.SessionID,
		ChunkSize:   result.ChunkSize,
		TotalChunks: result.TotalChunks,
		UploadURL:   fmt.Sprintf("/api/upload/chunk?uploadId=%s", result.SessionID),
		ExpiresAt:   result.ExpiresAt,
	})
}

type chunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	Data        string `json:"data"`
}

type chunkProgress struct {
	Uploaded   int     `json:"uploaded"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

type chunkResponse struct {
	ChunkIndex int           `json:"chunkIndex"`
	Status     string        `json:"status"`
	Progress   chunkProgress `json:"progress"`
}

// UploadChunk handles POST /api/upload/chunk.
func (h *Handlers) UploadChunk(w http.ResponseWriter, r *http.Request) {
	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.New(domain.KindValidation, "malformed JSON body", err))
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, domain.New(domain.KindValidation, "data is not valid base64", err))
		return
	}

	status, err := h.uploads.Status(r.Context(), req.UploadID)
	if err != nil {
		writeError(w, err)
		return
	}
	// Decision #1 (SPEC_FULL.md §9): validate the client-supplied
	// totalChunks against the session's recorded value.
	if req.TotalChunks != status.Session.TotalChunks {
		writeError(w, domain.New(domain.KindValidation, "totalChunks does not match session", nil).
			WithDetails(map[string]any{"expected": status.Session.TotalChunks, "got": req.TotalChunks}))
		return
	}

	outcome, size, err := h.chunks.StoreChunk(r.Context(), req.UploadID, req.ChunkIndex, payload)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordChunk("rejected")
		}
		writeError(w, err)
		return
	}
	_ = size

	missing, err := h.chunks.Missing(r.Context(), req.UploadID)
	if err != nil {
		writeError(w, err)
		return
	}
	uploaded := status.Session.TotalChunks - len(missing)

	statusWord := "uploaded"
	if outcome == chunkservice.AlreadyPresent {
		statusWord = "already_uploaded"
	}
	if h.metrics != nil {
		h.metrics.RecordChunk(statusWord)
	}

	pct := 0.0
	if status.Session.TotalChunks > 0 {
		pct = 100 * float64(uploaded) / float64(status.Session.TotalChunks)
	}

	writeJSON(w, http.StatusOK, chunkResponse{
		ChunkIndex: req.ChunkIndex,
		Status:     statusWord,
		Progress: chunkProgress{
			Uploaded:   uploaded,
			Total:      status.Session.TotalChunks,
			Percentage: pct,
		},
	})
}

type statusResponse struct {
	UploadID       string    `json:"uploadId"`
	FileName       string    `json:"fileName"`
	FileSize       int64     `json:"fileSize"`
	TotalChunks    int       `json:"totalChunks"`
	UploadedChunks int       `json:"uploadedChunks"`
	MissingChunks  []int     `json:"missingChunks"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Status handles GET /api/upload/status/{uploadId}.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	uploadID := mux.Vars(r)["uploadId"]

	report, err := h.uploads.Status(r.Context(), uploadID)
	if err != nil {
		writeError(w, err)
		return
	}

	missing := report.Missing
	if missing == nil {
		missing = []int{}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		UploadID:       report.Session.SessionID,
		FileName:       report.Session.FileName,
		FileSize:       report.Session.DeclaredSize,
		TotalChunks:    report.Session.TotalChunks,
		UploadedChunks: report.Uploaded,
		MissingChunks:  missing,
		Status:         string(report.Session.Status),
		CreatedAt:      report.Session.CreatedAt,
		ExpiresAt:      report.Session.ExpiresAt,
	})
}

type completeRequest struct {
	UploadID string `json:"uploadId"`
}

type aiPipelineInfo struct {
	Status        string `json:"status"`
	EstimatedTime string `json:"estimatedTime,omitempty"`
	JobID         string `json:"jobId,omitempty"`
}

type completeResponse struct {
	UploadID   string         `json:"uploadId"`
	Status     string         `json:"status"`
	FilePath   string         `json:"filePath"`
	AIPipeline aiPipelineInfo `json:"aiPipeline"`
}

// Complete handles POST /api/upload/complete.
func (h *Handlers) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.New(domain.KindValidation, "malformed JSON body", err))
		return
	}

	sess, err := h.uploads.Complete(r.Context(), req.UploadID)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordUploadError(string(domain.KindOf(err)))
		}
		observability.SetError(r.Context(), err)
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordUpload("completed", "", sess.DeclaredSize, time.Since(sess.CreatedAt).Seconds())
		h.metrics.DecrementActiveSessions()
	}
	observability.AddEvent(r.Context(), "upload_completed", map[string]string{"uploadId": sess.SessionID})

	writeJSON(w, http.StatusOK, completeResponse{
		UploadID: sess.SessionID,
		Status:   "completed",
		FilePath: sess.FinalPath,
		AIPipeline: aiPipelineInfo{
			Status: "queued",
		},
	})
}

type healthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Seconds(),
	})
}
