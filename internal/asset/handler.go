package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/templa/templa/backend-go/internal/typeid"
)

const maxUploadSize = 25 << 20 // 25MB

// UploadResponse is returned from the upload endpoint. URL can be used
// directly as a scene's base image or a photo layer's source.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	dir       string // directory to store asset files
	maxPixels int
}

// NewHandler creates a new asset handler that stores files in dir. Uploads
// over maxPixels are refused; zero picks the loader's default.
func NewHandler(dir string, maxPixels int) *Handler {
	// Ensure directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	return &Handler{dir: dir, maxPixels: maxPixels}
}

var uploadTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif", "image/bmp", "image/tiff"}

// Upload handles POST /assets/upload (multipart form with "file" field).
// Every accepted format is decoded and stored as PNG.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 25MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Validate content type
	contentType := header.Header.Get("Content-Type")
	if !supportedType(contentType) {
		http.Error(w, "unsupported image type: "+contentType, http.StatusBadRequest)
		return
	}

	// Decode image to get dimensions (and to re-encode as PNG)
	img, err := Decode(file, h.maxPixels)
	if errors.Is(err, ErrTooLarge) {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	bounds := img.Bounds()

	// Generate asset ID and save as PNG
	assetID := typeid.NewAssetID()
	filename := assetID + ".png"
	filePath := filepath.Join(h.dir, filename)

	out, err := os.Create(filePath)
	if err != nil {
		slog.Error("create asset file", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		slog.Error("encode png", "error", err)
		os.Remove(filePath)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}

	slog.Info("asset uploaded", "id", assetID, "width", bounds.Dx(), "height", bounds.Dy())

	resp := UploadResponse{
		ID:     assetID,
		URL:    fmt.Sprintf("/assets/%s", filename),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Type:   "png",
		Name:   header.Filename,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func supportedType(contentType string) bool {
	for _, t := range uploadTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// Remove handles DELETE /api/assets/{id}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Delete(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Info("asset deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes an asset file from disk.
func (h *Handler) Delete(assetID string) error {
	path := filepath.Join(h.dir, filepath.Base(assetID)+".png")
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, assetID)
	}
	return nil
}
