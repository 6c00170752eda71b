package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/tdewolff/test"

	"github.com/templa/templa/backend-go/internal/document"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Get(ctx, "nope")
	test.That(t, errors.Is(err, ErrNotFound))
	test.That(t, errors.Is(m.Delete(ctx, "nope"), ErrNotFound))

	s := document.NewScene("scene_a", "A", "base.png", 10)
	test.Error(t, m.Put(ctx, s))
	s.Name = "changed after put"

	got, err := m.Get(ctx, "scene_a")
	test.Error(t, err)
	test.T(t, got.Name, "A")

	test.Error(t, m.Delete(ctx, "scene_a"))
	_, err = m.Get(ctx, "scene_a")
	test.That(t, errors.Is(err, ErrNotFound))
}

func TestListOrder(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil)
	for _, s := range []*document.Scene{
		document.NewScene("scene_old", "old", "b.png", 100),
		document.NewScene("scene_new", "new", "b.png", 300),
		document.NewScene("scene_mid", "mid", "b.png", 200),
	} {
		test.Error(t, svc.Put(ctx, s))
	}

	scenes, err := svc.List(ctx)
	test.Error(t, err)
	var ids []string
	for _, s := range scenes {
		ids = append(ids, s.ID)
	}
	test.T(t, ids, []string{"scene_new", "scene_mid", "scene_old"})
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil)

	_, err := svc.Create(ctx, CreateParams{Name: "no base"})
	test.That(t, errors.Is(err, ErrInvalid))

	empty, err := svc.Create(ctx, CreateParams{BaseImage: "base.png"})
	test.Error(t, err)
	test.T(t, empty.Name, "Untitled")
	test.T(t, len(empty.Layers), 0)
	test.That(t, strings.HasPrefix(empty.ID, "scene_"), empty.ID)

	sample, err := svc.Create(ctx, CreateParams{Name: "S", BaseImage: "base.png", Sample: true})
	test.Error(t, err)
	test.T(t, len(sample.Layers), 1)
	test.T(t, sample.Layers[0].Photo.Source, "base.png")
	test.T(t, sample.Layers[0].ZOrder, 1)
}

func TestImportExport(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil)

	_, err := svc.Import(ctx, []byte(`{"id":"x","name":"bad"}`))
	test.That(t, errors.Is(err, document.ErrMissingLayers))
	all, _ := svc.List(ctx)
	test.T(t, len(all), 0)

	imported, err := svc.Import(ctx, []byte(`{"id":"scene_orig","name":"Card","baseImage":"b.png","layers":[]}`))
	test.Error(t, err)
	test.That(t, imported.ID != "scene_orig")
	test.T(t, imported.Name, "Card")

	again, err := svc.Import(ctx, []byte(`{"id":"scene_orig","name":"Card","baseImage":"b.png","layers":[]}`))
	test.Error(t, err)
	test.That(t, again.ID != imported.ID, "import reused an id")

	_, data, err := svc.Export(ctx, imported.ID)
	test.Error(t, err)
	round, err := document.Decode(data)
	test.Error(t, err)
	test.T(t, round.ID, imported.ID)
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil)

	s, err := svc.Save(ctx, "scene_x", []byte(`{"id":"other","name":"X","baseImage":"b.png","layers":[]}`))
	test.Error(t, err)
	test.T(t, s.ID, "scene_x")
	test.That(t, s.LastModified > 0)

	s, err = svc.Save(ctx, "scene_x", []byte(`{"name":"X2","lastModified":42,"layers":[]}`))
	test.Error(t, err)
	test.T(t, s.LastModified, int64(42))
	got, _ := svc.Get(ctx, "scene_x")
	test.T(t, got.Name, "X2")

	_, err = svc.Save(ctx, "scene_x", []byte(`{"name":"no layers"}`))
	test.That(t, errors.Is(err, document.ErrMissingLayers))
}

func newRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/templates", h.List).Methods("GET")
	r.HandleFunc("/api/templates", h.Create).Methods("POST")
	r.HandleFunc("/api/templates/import", h.Import).Methods("POST")
	r.HandleFunc("/api/templates/{id}", h.Get).Methods("GET")
	r.HandleFunc("/api/templates/{id}", h.Save).Methods("PUT")
	r.HandleFunc("/api/templates/{id}", h.Delete).Methods("DELETE")
	r.HandleFunc("/api/templates/{id}/export", h.Export).Methods("GET")
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, bytes.NewBufferString(body)))
	return rec
}

func TestHandler(t *testing.T) {
	r := newRouter(NewHandler(NewService(NewMemoryStore(), nil)))

	rec := do(r, "POST", "/api/templates", `{"name":"Birthday card","baseImage":"b.png"}`)
	test.T(t, rec.Code, http.StatusCreated)
	var created document.Scene
	test.Error(t, json.NewDecoder(rec.Body).Decode(&created))

	test.T(t, do(r, "POST", "/api/templates", `{"name":"x"}`).Code, http.StatusBadRequest)
	test.T(t, do(r, "GET", "/api/templates/"+created.ID, "").Code, http.StatusOK)
	test.T(t, do(r, "GET", "/api/templates/scene_missing", "").Code, http.StatusNotFound)

	rec = do(r, "GET", "/api/templates", "")
	var list []summary
	test.Error(t, json.NewDecoder(rec.Body).Decode(&list))
	test.T(t, len(list), 1)
	test.T(t, list[0].Name, "Birthday card")

	rec = do(r, "GET", "/api/templates/"+created.ID+"/export", "")
	test.T(t, rec.Code, http.StatusOK)
	test.T(t, rec.Header().Get("Content-Disposition"), `attachment; filename="Birthday-card.json"`)

	test.T(t, do(r, "POST", "/api/templates/import", rec.Body.String()).Code, http.StatusCreated)
	test.T(t, do(r, "POST", "/api/templates/import", `{"name":"x"}`).Code, http.StatusBadRequest)
	test.T(t, do(r, "PUT", "/api/templates/"+created.ID, `{"name":"renamed","layers":[]}`).Code, http.StatusOK)

	test.T(t, do(r, "DELETE", "/api/templates/"+created.ID, "").Code, http.StatusNoContent)
	test.T(t, do(r, "DELETE", "/api/templates/"+created.ID, "").Code, http.StatusNotFound)
}

func TestWritesRefusedWhileInUse(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	r := newRouter(NewHandler(svc))

	rec := do(r, "POST", "/api/templates", `{"name":"Open","baseImage":"b.png"}`)
	var created document.Scene
	test.Error(t, json.NewDecoder(rec.Body).Decode(&created))

	svc.SetInUse(func(id string) bool { return id == created.ID })
	test.T(t, do(r, "PUT", "/api/templates/"+created.ID, `{"name":"renamed","layers":[]}`).Code, http.StatusConflict)
	test.T(t, do(r, "DELETE", "/api/templates/"+created.ID, "").Code, http.StatusConflict)
	_, err := svc.Save(context.Background(), created.ID, []byte(`{"layers":[]}`))
	test.That(t, errors.Is(err, ErrInUse))

	got, err := svc.Get(context.Background(), created.ID)
	test.Error(t, err)
	test.T(t, got.Name, "Open")

	// the session's own saves still go through
	got.Name = "from session"
	test.Error(t, svc.Put(context.Background(), got))

	svc.SetInUse(nil)
	test.T(t, do(r, "DELETE", "/api/templates/"+created.ID, "").Code, http.StatusNoContent)
}
