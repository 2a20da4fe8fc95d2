package playback

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge-agent/internal/logging"
)

// Server streams files with byte-range semantics. ServeStream is used
// for in-page preview; ServeDownload adds an attachment disposition for
// finished artifacts.
type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeStream serves the file inline with Range support.
func (s *Server) ServeStream(w http.ResponseWriter, r *http.Request, filePath string) error {
	return s.serve(w, r, filePath, "")
}

// ServeDownload serves the file as an attachment under downloadName.
func (s *Server) ServeDownload(w http.ResponseWriter, r *http.Request, filePath, downloadName string) error {
	return s.serve(w, r, filePath, downloadName)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, filePath, downloadName string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	if downloadName != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}

	parsedRange, err := ParseRange(r.Header.Get("Range"), size)
	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if err != nil && err != ErrInvalidRange {
		return err
	}

	if parsedRange == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, file); err != nil {
			// Headers are already out; clients abort mid-stream all
			// the time, so this is not worth more than a debug line.
			s.logger.Debug("stream interrupted", "path", logging.SanitizePath(filePath), "error", err)
		}
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", parsedRange.ContentLength()))
	w.Header().Set("Content-Range", parsedRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	if _, err := io.CopyN(w, file, parsedRange.ContentLength()); err != nil {
		s.logger.Debug("range stream interrupted", "path", logging.SanitizePath(filePath), "error", err)
	}
	return nil
}
