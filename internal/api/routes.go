package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge-agent/internal/compose"
	"github.com/clipforge/clipforge-agent/internal/export"
	"github.com/clipforge/clipforge-agent/internal/segment"
	"github.com/clipforge/clipforge-agent/internal/session"
)

// maxUploadBytes bounds one video upload (2 GiB).
const maxUploadBytes = 2 << 30

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/video", uploadVideoHandler(cfg))
		r.Get("/video/stream", streamVideoHandler(cfg))

		r.Get("/segments", listSegmentsHandler(cfg))

		r.Get("/queue", getQueueHandler(cfg))
		r.Post("/queue", enqueueHandler(cfg))
		r.Delete("/queue", clearQueueHandler(cfg))
		r.Delete("/queue/{index}", dequeueHandler(cfg))

		r.Post("/compose", composeHandler(cfg))
		r.Get("/progress", progressHandler(cfg))

		r.Get("/artifact", downloadArtifactHandler(cfg))
		r.Delete("/artifact", dismissArtifactHandler(cfg))

		r.Delete("/error", dismissErrorHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Get("/runs", listRunsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  "0.1.0",
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := cfg.Session.Snapshot()

		resp := StatusResponse{
			State:        string(snap.State),
			LastError:    snap.LastError,
			Video:        snap.Video,
			SegmentCount: snap.SegmentCount,
			QueueCount:   snap.QueueCount,
			HasArtifact:  snap.HasArtifact,
			ActiveRunID:  snap.ActiveRunID,
		}

		if cfg.Toolchain != nil {
			resp.Toolchain = &ToolchainResponse{
				HasFFmpeg:     cfg.Toolchain.HasFFmpeg,
				HasFFprobe:    cfg.Toolchain.HasFFprobe,
				HasWhisper:    cfg.Toolchain.HasWhisper,
				CanCompose:    cfg.Toolchain.CanCompose(),
				CanTranscribe: cfg.Toolchain.CanTranscribe(),
				ProbedAt:      cfg.Toolchain.ProbedAt.Format(time.RFC3339),
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func uploadVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		file, header, err := r.FormFile("video")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "multipart field 'video' is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		video, err := cfg.Session.UploadVideo(r.Context(), header.Filename, file)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "MEDIA_LOAD_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, UploadResponse{Video: video})
	}
}

func streamVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video := cfg.Session.Video()
		if video == nil {
			WriteError(w, http.StatusNotFound, "no video loaded", "NOT_FOUND")
			return
		}
		if err := cfg.Playback.ServeStream(w, r, video.Path); err != nil {
			cfg.Logger.Error("stream failed", "error", err)
		}
	}
}

func listSegmentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		segments := cfg.Session.Segments()
		if segments == nil {
			segments = []segment.Segment{}
		}
		WriteJSON(w, http.StatusOK, SegmentsResponse{Segments: segments})
	}
}

func getQueueHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, QueueResponse{
			Items:        cfg.Session.QueueItems(),
			SelectedText: cfg.Session.SelectedText(),
		})
	}
}

func enqueueHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.SegmentID == "" {
			WriteError(w, http.StatusBadRequest, "segment_id is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Session.AddToQueue(req.SegmentID); err != nil {
			switch {
			case errors.Is(err, session.ErrSegmentNotFound):
				WriteError(w, http.StatusNotFound, "segment not found", "NOT_FOUND")
			case errors.Is(err, session.ErrNotReady):
				WriteError(w, http.StatusConflict, "no analyzed video loaded", "CONFLICT")
			default:
				WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			}
			return
		}

		WriteJSON(w, http.StatusOK, QueueResponse{
			Items:        cfg.Session.QueueItems(),
			SelectedText: cfg.Session.SelectedText(),
		})
	}
}

func dequeueHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "index must be an integer", "BAD_REQUEST")
			return
		}

		if err := cfg.Session.RemoveFromQueue(index); err != nil {
			if errors.Is(err, segment.ErrIndexOutOfRange) {
				WriteError(w, http.StatusNotFound, "queue index out of range", "INDEX_OUT_OF_RANGE")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, QueueResponse{
			Items:        cfg.Session.QueueItems(),
			SelectedText: cfg.Session.SelectedText(),
		})
	}
}

func clearQueueHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Session.ClearQueue()
		WriteJSON(w, http.StatusOK, QueueResponse{Items: []segment.Segment{}})
	}
}

func composeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Session.Generate(r.Context()); err != nil {
			switch {
			case errors.Is(err, session.ErrEmptyQueue):
				WriteError(w, http.StatusUnprocessableEntity, "selection queue is empty", "EMPTY_QUEUE")
			case errors.Is(err, session.ErrNotReady):
				WriteError(w, http.StatusConflict, "session is not ready to generate", "CONFLICT")
			default:
				WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			}
			return
		}

		WriteJSON(w, http.StatusAccepted, ComposeResponse{State: string(cfg.Session.State())})
	}
}

func progressHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since := int64(0)
		if raw := r.URL.Query().Get("since"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "since must be an integer", "BAD_REQUEST")
				return
			}
			since = parsed
		}

		events := cfg.Progress.Since(since)
		resp := ProgressResponse{Events: events}
		if resp.Events == nil {
			resp.Events = []compose.Event{}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func downloadArtifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := cfg.Session.ArtifactPath()
		if path == "" {
			WriteError(w, http.StatusNotFound, "no artifact available", "NOT_FOUND")
			return
		}
		if err := cfg.Playback.ServeDownload(w, r, path, filepath.Base(path)); err != nil {
			cfg.Logger.Error("artifact download failed", "error", err)
		}
	}
}

func dismissArtifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Session.DismissArtifact(); err != nil {
			WriteError(w, http.StatusConflict, "no artifact to dismiss", "CONFLICT")
			return
		}
		WriteJSON(w, http.StatusOK, ComposeResponse{State: string(cfg.Session.State())})
	}
}

func dismissErrorHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Session.DismissError()
		w.WriteHeader(http.StatusNoContent)
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
				return
			}
		}

		video := cfg.Session.Video()
		if video == nil {
			WriteError(w, http.StatusConflict, "no video loaded", "CONFLICT")
			return
		}
		queued := cfg.Session.QueueItems()
		if len(queued) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "selection queue is empty", "EMPTY_QUEUE")
			return
		}

		title := req.Title
		if title == "" {
			title = export.SanitizeName(video.Name, 60)
		}
		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = 30
		}

		edl := export.GenerateEDL(queued, title, video.Path, frameRate)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="selection.edl"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(edl))
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := cfg.Repository.ListRuns(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}

		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, run := range runs {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
