package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"strings"

	"github.com/templa/templa/backend-go/internal/asset"
	"github.com/templa/templa/backend-go/internal/document"
	"github.com/templa/templa/backend-go/internal/engine"
	"github.com/templa/templa/backend-go/internal/render"
)

// ErrExportAborted means the base image could not be loaded, so there is no
// natural size to render at. Layer image failures never cause it.
var ErrExportAborted = errors.New("export aborted")

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

const DefaultJPEGQuality = 92

// ParseFormat accepts png, jpeg and jpg. Empty means png.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, true
	case "jpeg", "jpg":
		return FormatJPEG, true
	}
	return "", false
}

func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// Result is a rendered scene plus what degraded along the way.
type Result struct {
	Image    *image.RGBA
	Scale    float64
	Warnings []render.Warning
}

// Exporter loads a scene's images and rasterizes it.
type Exporter struct {
	loader   *asset.Loader
	renderer *render.Renderer
	logger   *slog.Logger
}

// NewExporter creates an exporter. A nil logger uses slog.Default().
func NewExporter(loader *asset.Loader, renderer *render.Renderer, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{loader: loader, renderer: renderer, logger: logger}
}

// Render draws scene at scale over its base image's natural size. The base
// must load; photo layers that fail to load are skipped and reported as
// warnings.
func (e *Exporter) Render(ctx context.Context, scene *document.Scene, scale float64) (*Result, error) {
	if scene == nil {
		return nil, fmt.Errorf("%w: no scene", ErrExportAborted)
	}
	base, err := e.loadBase(ctx, scene)
	if err != nil {
		return nil, err
	}

	var sources []string
	for _, l := range scene.Layers {
		if l.IsPhoto() && l.Photo.Source != scene.BaseImage {
			sources = append(sources, l.Photo.Source)
		}
	}
	images, failures := e.loader.LoadAll(ctx, sources)
	images[scene.BaseImage] = base
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := base.Bounds().Size()
	sg := engine.BuildSceneGraph(scene, size.X, size.Y, scale)
	img, warnings := e.renderer.Rasterize(sg, render.Resources{Images: images, Failures: failures})
	return &Result{Image: img, Scale: sg.Scale, Warnings: warnings}, nil
}

// Preview renders scene into a surface width pixels wide, keeping the
// base's aspect ratio. width <= 0 renders at natural size.
func (e *Exporter) Preview(ctx context.Context, scene *document.Scene, width int) (*Result, error) {
	if scene == nil {
		return nil, fmt.Errorf("%w: no scene", ErrExportAborted)
	}
	base, err := e.loadBase(ctx, scene)
	if err != nil {
		return nil, err
	}
	return e.Render(ctx, scene, engine.PreviewScale(width, base.Bounds().Dx()))
}

func (e *Exporter) loadBase(ctx context.Context, scene *document.Scene) (image.Image, error) {
	if scene.BaseImage == "" {
		return nil, fmt.Errorf("%w: scene has no base image", ErrExportAborted)
	}
	base, err := e.loader.Load(ctx, scene.BaseImage)
	if err != nil {
		e.logger.Error("base image load failed", "scene", scene.ID, "error", err)
		return nil, fmt.Errorf("%w: base image: %w", ErrExportAborted, err)
	}
	if b := base.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: base image is empty", ErrExportAborted)
	}
	return base, nil
}

// Encode writes img in format. quality applies to JPEG only; out of range
// values use DefaultJPEGQuality.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatJPEG:
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode(w, img)
	}
}

// DataURI encodes img as a base64 data URI.
func DataURI(img image.Image, format Format, quality int) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return "", err
	}
	return "data:" + format.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
