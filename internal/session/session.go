package session

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/templa/templa/backend-go/internal/document"
	"github.com/templa/templa/backend-go/internal/engine"
	"github.com/templa/templa/backend-go/internal/interaction"
	"github.com/templa/templa/backend-go/internal/layers"
)

const autosaveInterval = 30 * time.Second

// ImageLoader decodes an image source.
type ImageLoader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// TemplateStore loads and saves the scene a session edits.
type TemplateStore interface {
	Get(ctx context.Context, id string) (*document.Scene, error)
	Put(ctx context.Context, s *document.Scene) error
}

// Sender delivers server messages to the connected client.
type Sender interface {
	Send(msg *Message)
}

// Session is one editing session over one template. All editor access
// happens on the session goroutine; other goroutines post closures to the
// inbox, so the editor needs no locking.
type Session struct {
	ID         string
	TemplateID string

	editor *Editor
	loader ImageLoader
	store  TemplateStore
	out    Sender
	logger *slog.Logger

	inbox  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	dirty bool
}

func newSession(id string, scene *document.Scene, loader ImageLoader, store TemplateStore, out Sender, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         id,
		TemplateID: scene.ID,
		editor:     NewEditor(),
		loader:     loader,
		store:      store,
		out:        out,
		logger:     logger.With("session", id, "template", scene.ID),
		inbox:      make(chan func(), 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.editor.Load(scene)
	return s
}

// Run processes the inbox until Close. The final state is saved on exit.
func (s *Session) Run() {
	defer close(s.done)

	s.startLoad(s.editor.BeginImageLoad(interaction.BaseTarget, s.editor.Scene().BaseImage))
	for _, l := range s.editor.Scene().Layers {
		if l.IsPhoto() {
			s.startLoad(s.editor.BeginImageLoad(l.ID, l.Photo.Source))
		}
	}
	s.sendState("")

	ticker := time.NewTicker(autosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-ticker.C:
			s.save(s.ctx)
		case <-s.ctx.Done():
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.save(ctx)
			cancel()
			return
		}
	}
}

// Close stops the session and waits for the final save.
func (s *Session) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Submit queues a client message. It blocks while the inbox is full.
func (s *Session) Submit(msg *Message) {
	s.post(func() { s.handle(msg) })
}

func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.ctx.Done():
	}
}

func (s *Session) handle(msg *Message) {
	if err := s.apply(msg); err != nil {
		s.logger.Warn("message rejected", "type", msg.Type, "error", err)
		s.sendError(msg.Type, err.Error())
	}
}

// apply runs one message against the editor and sends the resulting state.
func (s *Session) apply(msg *Message) error {
	e := s.editor
	changed := false
	added := ""

	switch msg.Type {
	case TypePointerDown, TypePointerMove:
		var ev interaction.PointerEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}
		if msg.Type == TypePointerDown {
			e.PointerDown(ev)
			s.sendState("")
			return nil
		}
		if !e.PointerMove(ev) {
			if e.Controller().Phase() == interaction.Panning {
				s.sendState("")
			}
			return nil
		}
		changed = true

	case TypePointerUp:
		e.PointerUp()
		s.sendState("")
		return nil

	case TypePointerLeave:
		e.PointerLeave()
		s.sendState("")
		return nil

	case TypeWheel:
		var ev interaction.WheelEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}
		if e.Wheel(ev) {
			s.sendState("")
		}
		return nil

	case TypeKeyDown, TypeKeyUp:
		var p KeyPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if msg.Type == TypeKeyDown {
			e.KeyDown(p.Key)
		} else {
			e.KeyUp(p.Key)
		}
		s.sendState("")
		return nil

	case TypeSurface:
		var p SurfacePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		e.Controller().SetSurface(p.Surface)
		if p.Snap != nil {
			e.Controller().SetSnap(*p.Snap)
		}
		if p.DisplayWidth > 0 {
			e.SetDisplayWidth(p.DisplayWidth)
		}
		return nil

	case TypeLayerAdd:
		var p LayerAddPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		switch p.Kind {
		case document.LayerKindText:
			added = e.AddText(p.Color)
		case document.LayerKindPhoto:
			if p.Source == "" {
				return fmt.Errorf("photo layer needs a source")
			}
			var load ImageLoad
			added, load = e.AddPhoto(p.Source)
			s.startLoad(load)
		default:
			return fmt.Errorf("unknown layer kind %q", p.Kind)
		}
		changed = added != ""

	case TypeLayerUpdate:
		var p LayerUpdatePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		var load *ImageLoad
		changed, load = e.Update(p.ID, p.Patch)
		if load != nil {
			s.startLoad(*load)
		}

	case TypeLayerRemove, TypeLayerToggleLock:
		var p LayerIDPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if msg.Type == TypeLayerRemove {
			changed = e.Remove(p.ID)
		} else {
			changed = e.ToggleLock(p.ID)
		}

	case TypeLayerReorder:
		var p LayerReorderPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		changed = e.Reorder(p.ID, p.Direction)

	case TypeLayerResizeWidth, TypeLayerResizeHeight:
		var p LayerResizePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if msg.Type == TypeLayerResizeWidth {
			changed = e.ResizeWidth(p.ID, p.Value)
		} else {
			changed = e.ResizeHeight(p.ID, p.Value)
		}

	case TypeBaseUpdate:
		var p layers.BasePatch
		if err := decode(msg, &p); err != nil {
			return err
		}
		var load *ImageLoad
		changed, load = e.UpdateBase(p)
		if load != nil {
			s.startLoad(*load)
		}

	case TypeRender:
		s.sendCommands()
		return nil

	case TypeSave:
		s.save(s.ctx)
		return nil

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}

	if changed {
		s.dirty = true
		s.sendState(added)
	}
	return nil
}

// startLoad decodes in the background and posts the result back. A load
// that was superseded meanwhile is dropped by the editor's identity check.
func (s *Session) startLoad(load ImageLoad) {
	if load.Source == "" {
		s.editor.FailImageLoad(load)
		return
	}
	go func() {
		img, err := s.loader.Load(s.ctx, load.Source)
		s.post(func() {
			if err != nil {
				if s.editor.FailImageLoad(load) {
					s.logger.Warn("image load failed", "target", load.Target, "error", err)
					s.sendError("image.load", fmt.Sprintf("%s: %v", load.Target, err))
					s.sendState("")
				}
				return
			}
			size := img.Bounds().Size()
			before := s.editor.Scene()
			if !s.editor.CompleteImageLoad(load, size.X, size.Y) {
				return
			}
			if s.editor.Scene() != before {
				s.dirty = true
			}
			s.sendState("")
		})
	}()
}

func (s *Session) save(ctx context.Context) {
	if !s.dirty {
		return
	}
	scene := s.editor.Scene()
	if err := s.store.Put(ctx, scene); err != nil {
		s.logger.Error("save session", "error", err)
		s.sendError(TypeSave, "save failed")
		return
	}
	s.dirty = false
	s.logger.Info("session saved", "lastModified", scene.LastModified)
	s.send(TypeSaved, SavedPayload{ID: scene.ID, LastModified: scene.LastModified})
}

func (s *Session) sendState(added string) {
	e := s.editor
	w, h := e.NaturalSize()
	s.send(TypeSceneState, SceneStatePayload{
		Scene:         e.Scene(),
		Phase:         e.Controller().Phase().String(),
		View:          e.Controller().View(),
		Active:        e.Controller().Active(),
		NaturalWidth:  w,
		NaturalHeight: h,
		PendingLoads:  e.PendingLoads(),
		Added:         added,
	})
}

func (s *Session) sendCommands() {
	g := s.editor.Graph()
	cmds := s.editor.Commands()
	if cmds == nil {
		cmds = []engine.DrawCommand{}
	}
	s.send(TypeRenderCommands, RenderCommandsPayload{
		Width:    g.Width,
		Height:   g.Height,
		Scale:    g.Scale,
		Commands: cmds,
	})
}

func (s *Session) sendError(ref, message string) {
	s.send(TypeError, ErrorPayload{Message: message, Ref: ref})
}

func (s *Session) send(typ string, payload interface{}) {
	if s.out == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal payload", "type", typ, "error", err)
		return
	}
	s.out.Send(&Message{Type: typ, Payload: data})
}

func decode(msg *Message, v interface{}) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return nil
}
