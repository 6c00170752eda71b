package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/templa/templa/backend-go/internal/document"
	"github.com/templa/templa/backend-go/internal/typeid"
)

const maxSceneSize = 64 << 20 // 64MB, scenes may embed data URIs

type Handler struct {
	exporter *Exporter
}

func NewHandler(exporter *Exporter) *Handler {
	return &Handler{exporter: exporter}
}

type imageResponse struct {
	ID       string   `json:"id"`
	DataURI  string   `json:"dataUri"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Warnings []string `json:"warnings"`
}

// ExportImage handles POST /export/image. The body is a serialized scene;
// the response is the image at natural resolution, either as a file or as
// JSON carrying a data URI (encoding=datauri).
func (h *Handler) ExportImage(w http.ResponseWriter, r *http.Request) {
	format, ok := ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid format: must be png or jpeg"})
		return
	}
	quality, err := strconv.Atoi(r.URL.Query().Get("quality"))
	if err != nil {
		quality = DefaultJPEGQuality
	}
	encoding := r.URL.Query().Get("encoding")
	if encoding != "" && encoding != "binary" && encoding != "datauri" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid encoding: must be binary or datauri"})
		return
	}

	scene, ok := readScene(w, r)
	if !ok {
		return
	}

	exportID := typeid.NewExportID()
	res, err := h.exporter.Render(r.Context(), scene, 1)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	slog.Info("export rendered", "id", exportID, "scene", scene.ID, "format", format,
		"width", res.Image.Bounds().Dx(), "height", res.Image.Bounds().Dy(), "warnings", len(res.Warnings))

	if encoding == "datauri" {
		uri, err := DataURI(res.Image, format, quality)
		if err != nil {
			slog.Error("encode export", "id", exportID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		warnings := make([]string, len(res.Warnings))
		for i, wn := range res.Warnings {
			warnings[i] = wn.Error()
		}
		writeJSON(w, http.StatusOK, imageResponse{
			ID:       exportID,
			DataURI:  uri,
			Width:    res.Image.Bounds().Dx(),
			Height:   res.Image.Bounds().Dy(),
			Warnings: warnings,
		})
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, fileName(scene.Name), format.Extension()))
	w.Header().Set("X-Export-Id", exportID)
	w.Header().Set("X-Render-Warnings", strconv.Itoa(len(res.Warnings)))
	if err := Encode(w, res.Image, format, quality); err != nil {
		slog.Error("write export", "id", exportID, "error", err)
	}
}

// Preview handles POST /render/preview?width=. It renders through the same
// path as ExportImage at width/naturalWidth scale and always returns PNG.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	width := 0
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 8192 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid width"})
			return
		}
		width = n
	}

	scene, ok := readScene(w, r)
	if !ok {
		return
	}

	res, err := h.exporter.Preview(r.Context(), scene, width)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", FormatPNG.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Render-Scale", strconv.FormatFloat(res.Scale, 'f', -1, 64))
	w.Header().Set("X-Render-Warnings", strconv.Itoa(len(res.Warnings)))
	if err := Encode(w, res.Image, FormatPNG, 0); err != nil {
		slog.Error("write preview", "error", err)
	}
}

func readScene(w http.ResponseWriter, r *http.Request) (*document.Scene, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSceneSize))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "scene too large"})
		return nil, false
	}
	scene, err := document.Decode(data)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return scene, true
}

// fileName keeps letters, digits, dash and underscore.
func fileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
	if strings.Trim(name, "-") == "" {
		return "export"
	}
	return name
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, document.ErrMissingLayers):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scene has no layers field"})
	case errors.Is(err, document.ErrMalformed):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed scene"})
	case errors.Is(err, ErrExportAborted):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		slog.Error("export error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
