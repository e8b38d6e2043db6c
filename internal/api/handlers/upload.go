package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dvloznov/family-ledger/internal/api/middleware"
	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/pipeline"
	"github.com/rs/zerolog"
)

// UploadHandler accepts statement files.
type UploadHandler struct {
	importer Importer
	maxBytes int64
	log      zerolog.Logger
}

// NewUploadHandler creates an upload handler accepting bodies up to maxBytes.
func NewUploadHandler(importer Importer, maxBytes int64, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		importer: importer,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Upload handles POST /api/upload. The file is either the multipart "file"
// field or the raw request body.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	filename, content, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid upload")
		return
	}

	result, err := h.importer.Import(r.Context(), pipeline.Upload{
		Identity: id,
		Filename: filename,
		Content:  content,
	})
	if errors.Is(err, domain.ErrUnparsableFile) {
		middleware.WriteError(w, http.StatusBadRequest, "Could not parse file")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Import failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to import file")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

func readUpload(r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		content, err := io.ReadAll(r.Body)
		return cleanFilename(r.URL.Query().Get("filename")), content, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	return cleanFilename(header.Filename), content, err
}

func cleanFilename(name string) string {
	if idx := strings.Index(name, "?"); idx > 0 {
		name = name[:idx]
	}
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
