package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/importer"
	"github.com/AbhigyanPie/product-impoter/internal/models"
	"github.com/AbhigyanPie/product-impoter/internal/progress"
	"github.com/AbhigyanPie/product-impoter/internal/runner"
	"github.com/AbhigyanPie/product-impoter/internal/spool"
	"github.com/AbhigyanPie/product-impoter/internal/telemetry"
)

const streamPollInterval = 250 * time.Millisecond

// handleUpload accepts a CSV upload, spools it, registers the task, and
// hands it to the execution backend. The response returns before any row
// is processed. Rejections (size, file type, backlog) leave no task
// behind.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil {
		if allowed, _ := s.limiter.Allow(clientKey(r)); !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}
	if r.ContentLength > s.cfg.MaxUploadBytes {
		telemetry.UploadRejects.Inc()
		http.Error(w, fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "multipart form required", http.StatusBadRequest)
		return
	}
	part, err := filePart(mr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer part.Close()

	fileName := part.FileName()
	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		telemetry.UploadRejects.Inc()
		http.Error(w, "only .csv files are accepted", http.StatusBadRequest)
		return
	}

	taskID := uuid.NewString()
	spoolKey := "uploads/" + taskID + ".csv"
	size, err := s.spool.Put(r.Context(), spoolKey, part, s.cfg.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, spool.ErrTooLarge) {
			telemetry.UploadRejects.Inc()
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		s.log.Error("spool upload", zap.String("file", fileName), zap.Error(err))
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	if err := s.tracker.Create(r.Context(), taskID, fileName); err != nil {
		_ = s.spool.Remove(context.WithoutCancel(r.Context()), spoolKey)
		s.log.Error("create task record", zap.String("task_id", taskID), zap.Error(err))
		http.Error(w, "failed to register import", http.StatusInternalServerError)
		return
	}

	task := importer.TaskRef{ID: taskID, FileName: fileName, SpoolKey: spoolKey}
	if err := s.runner.Submit(r.Context(), task); err != nil {
		cleanupCtx := context.WithoutCancel(r.Context())
		_ = s.tracker.Delete(cleanupCtx, taskID)
		_ = s.spool.Remove(cleanupCtx, spoolKey)
		if errors.Is(err, runner.ErrBusy) {
			telemetry.UploadRejects.Inc()
			http.Error(w, "import backlog is full, retry later", http.StatusServiceUnavailable)
			return
		}
		s.log.Error("submit import", zap.String("task_id", taskID), zap.Error(err))
		http.Error(w, "failed to schedule import", http.StatusInternalServerError)
		return
	}
	s.log.Info("upload accepted",
		zap.String("task_id", taskID),
		zap.String("file", fileName),
		zap.Int64("bytes", size),
		zap.String("backend", s.runner.Mode()))

	rec, err := s.tracker.Get(r.Context(), taskID)
	if err != nil {
		rec = models.ImportTask{ID: taskID, FileName: fileName, Status: models.StatusPending, Message: "Upload received"}
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	rec, err := s.tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, progress.ErrNotFound) {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleStreamTask reports progress over SSE until the task reaches a
// terminal state. A dropped connection only stops the stream; the import
// keeps running.
func (s *Server) handleStreamTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	var last []byte
	misses := 0
	for {
		rec, err := s.tracker.Get(r.Context(), id)
		switch {
		case errors.Is(err, progress.ErrNotFound):
			// A few polls of grace covers the gap between accept and the
			// record landing; past that the id is unknown or expired.
			misses++
			if misses >= 5 {
				writeEvent(w, "error", []byte(`{"error":"task not found"}`))
				flusher.Flush()
				return
			}
		case err != nil:
			writeEvent(w, "error", []byte(`{"error":"progress unavailable"}`))
			flusher.Flush()
			return
		default:
			misses = 0
			payload, merr := json.Marshal(rec)
			if merr != nil {
				return
			}
			if !bytes.Equal(payload, last) {
				writeEvent(w, "progress", payload)
				flusher.Flush()
				last = payload
			}
			if rec.Status.Terminal() {
				writeEvent(w, "complete", payload)
				flusher.Flush()
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// filePart scans the multipart stream for the "file" field without
// buffering other parts.
func filePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("file field is required")
		}
		if err != nil {
			return nil, errors.New("malformed multipart body")
		}
		if part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}

func writeEvent(w io.Writer, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
