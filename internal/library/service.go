package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/templa/templa/backend-go/internal/document"
	"github.com/templa/templa/backend-go/internal/layers"
	"github.com/templa/templa/backend-go/internal/typeid"
)

var (
	ErrInvalid = errors.New("invalid template")
	ErrInUse   = errors.New("template is open in an editing session")
)

// InUseFunc reports whether an editing session holds a template. Such a
// session saves over the stored copy, so outside writes are refused.
type InUseFunc func(id string) bool

type Service struct {
	store  Store
	inUse  InUseFunc
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// SetInUse installs the check Save and Delete consult before writing.
func (s *Service) SetInUse(fn InUseFunc) { s.inUse = fn }

func (s *Service) checkInUse(id string) error {
	if s.inUse != nil && s.inUse(id) {
		return fmt.Errorf("%w: %s", ErrInUse, id)
	}
	return nil
}

// CreateParams describes a new template. With Sample set the scene starts
// with one placeholder photo layer showing PhotoSource (or the base image).
type CreateParams struct {
	Name        string `json:"name"`
	BaseImage   string `json:"baseImage"`
	Sample      bool   `json:"sample"`
	PhotoSource string `json:"photoSource,omitempty"`
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*document.Scene, error) {
	if p.BaseImage == "" {
		return nil, fmt.Errorf("%w: baseImage is required", ErrInvalid)
	}
	if p.Name == "" {
		p.Name = "Untitled"
	}

	var scene *document.Scene
	if p.Sample {
		source := p.PhotoSource
		if source == "" {
			source = p.BaseImage
		}
		scene = document.NewSampleScene(typeid.NewSceneID(), p.Name, p.BaseImage, typeid.NewLayerID(), source, layers.Now())
	} else {
		scene = document.NewScene(typeid.NewSceneID(), p.Name, p.BaseImage, layers.Now())
	}

	if err := s.store.Put(ctx, scene); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	s.logger.Info("template created", "id", scene.ID, "name", scene.Name)
	return scene, nil
}

func (s *Service) Get(ctx context.Context, id string) (*document.Scene, error) {
	return s.store.Get(ctx, id)
}

// List returns every template, most recently modified first.
func (s *Service) List(ctx context.Context) ([]*document.Scene, error) {
	scenes, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sortByLastModified(scenes)
	return scenes, nil
}

// Save stores a scene under id, replacing what was there. The body's own id
// is ignored. A missing timestamp is set to now.
func (s *Service) Save(ctx context.Context, id string, data []byte) (*document.Scene, error) {
	if err := s.checkInUse(id); err != nil {
		return nil, err
	}
	scene, err := document.Decode(data)
	if err != nil {
		return nil, err
	}
	scene.ID = id
	if scene.LastModified <= 0 {
		scene.LastModified = layers.Now()
	}
	if err := s.Put(ctx, scene); err != nil {
		return nil, err
	}
	return scene, nil
}

// Put stores a scene as-is.
func (s *Service) Put(ctx context.Context, scene *document.Scene) error {
	if scene == nil || scene.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	return s.store.Put(ctx, scene)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.checkInUse(id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("template deleted", "id", id)
	return nil
}

// Import stores an externally produced scene under a fresh id, so it never
// overwrites an existing template.
func (s *Service) Import(ctx context.Context, data []byte) (*document.Scene, error) {
	scene, err := document.Import(data, typeid.NewSceneID(), layers.Now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, scene); err != nil {
		return nil, fmt.Errorf("import template: %w", err)
	}
	s.logger.Info("template imported", "id", scene.ID, "layers", len(scene.Layers))
	return scene, nil
}

// Export returns the serialized scene.
func (s *Service) Export(ctx context.Context, id string) (*document.Scene, []byte, error) {
	scene, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := document.Marshal(scene)
	if err != nil {
		return nil, nil, err
	}
	return scene, data, nil
}
