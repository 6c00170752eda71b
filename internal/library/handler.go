package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/templa/templa/backend-go/internal/document"
)

const maxTemplateSize = 64 << 20 // 64MB, templates may embed data URIs

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// summary is the list view of a template. Layers and the base image are
// left out; they can be megabytes of data URI.
type summary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LayerCount   int    `json:"layerCount"`
	LastModified int64  `json:"lastModified"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scenes, err := h.service.List(r.Context())
	if err != nil {
		slog.Error("list templates failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	out := make([]summary, len(scenes))
	for i, s := range scenes {
		out[i] = summary{ID: s.ID, Name: s.Name, LayerCount: len(s.Layers), LastModified: s.LastModified}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	scene, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, scene)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scene, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scene)
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}

	scene, err := h.service.Save(r.Context(), mux.Vars(r)["id"], data)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scene)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}

	scene, err := h.service.Import(r.Context(), data)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, scene)
}

// Export sends the template as a downloadable JSON file.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	scene, data, err := h.service.Export(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, fileName(scene.Name)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTemplateSize))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "template too large"})
		return nil, false
	}
	return data, true
}

func fileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
	if strings.Trim(name, "-") == "" {
		return "template"
	}
	return name
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrInUse):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, document.ErrMissingLayers):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "template has no layers field"})
	case errors.Is(err, document.ErrMalformed), errors.Is(err, ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
