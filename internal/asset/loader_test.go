package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/tdewolff/test"
	"golang.org/x/crypto/blake2b"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	test.Error(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func TestLoadDataURI(t *testing.T) {
	l := NewLoader(LoaderOptions{})
	img, err := l.Load(context.Background(), dataURI(encodePNG(t, 7, 5)))
	test.Error(t, err)
	test.T(t, img.Bounds(), image.Rect(0, 0, 7, 5))

	again, err := l.Load(context.Background(), dataURI(encodePNG(t, 7, 5)))
	test.Error(t, err)
	test.That(t, again == img, "expected cached image")
}

func TestLoadErrors(t *testing.T) {
	l := NewLoader(LoaderOptions{MaxBytes: 64})
	ctx := context.Background()

	_, err := l.Load(ctx, "ftp://example.com/a.png")
	test.That(t, errors.Is(err, ErrUnsupportedSource), err)

	_, err = l.Load(ctx, "data:image/png;base64,AAAA")
	test.That(t, errors.Is(err, ErrDecode), err)

	_, err = l.Load(ctx, dataURI(bytes.Repeat([]byte{1}, 200)))
	test.That(t, errors.Is(err, ErrTooLarge), err)

	_, err = l.Load(ctx, "/assets/missing.png")
	test.That(t, errors.Is(err, ErrNotFound), err)
}

func TestLoadRemoteAndAssets(t *testing.T) {
	data := encodePNG(t, 3, 2)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	dir := t.TempDir()
	test.Error(t, os.WriteFile(filepath.Join(dir, "asset_1.png"), data, 0o644))

	l := NewLoader(LoaderOptions{Dir: dir, Concurrency: 2, AllowPrivateHosts: true})
	images, failures := l.LoadAll(context.Background(), []string{
		srv.URL + "/ok.png",
		srv.URL + "/ok.png",
		srv.URL + "/missing.png",
		"/assets/asset_1.png",
		"/assets/../../etc/passwd",
		"",
	})
	test.T(t, len(images), 2)
	test.T(t, len(failures), 2)
	test.T(t, images["/assets/asset_1.png"].Bounds().Dx(), 3)
	test.T(t, images[srv.URL+"/ok.png"].Bounds().Dy(), 2)
	test.T(t, hits.Load(), int32(2))
}

func TestLoadRefusesPrivateHosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(encodePNG(t, 1, 1))
	}))
	defer srv.Close()

	l := NewLoader(LoaderOptions{})
	_, err := l.Load(context.Background(), srv.URL+"/a.png")
	test.That(t, errors.Is(err, ErrForbiddenHost), err)
}

func TestRefusePrivate(t *testing.T) {
	for _, tt := range []struct {
		address string
		refused bool
	}{
		{"127.0.0.1:80", true},
		{"10.1.2.3:443", true},
		{"192.168.0.10:80", true},
		{"169.254.169.254:80", true},
		{"0.0.0.0:80", true},
		{"[::1]:443", true},
		{"[fe80::1]:80", true},
		{"[::ffff:127.0.0.1]:80", true},
		{"93.184.216.34:443", false},
		{"[2606:2800:220:1::1]:443", false},
	} {
		t.Run(tt.address, func(t *testing.T) {
			err := refusePrivate("tcp", tt.address, nil)
			test.T(t, errors.Is(err, ErrForbiddenHost), tt.refused)
		})
	}
}

func TestLoadPixelLimit(t *testing.T) {
	l := NewLoader(LoaderOptions{MaxPixels: 100})
	ctx := context.Background()

	_, err := l.Load(ctx, dataURI(encodePNG(t, 10, 10)))
	test.Error(t, err)

	_, err = l.Load(ctx, dataURI(encodePNG(t, 11, 10)))
	test.That(t, errors.Is(err, ErrTooLarge), err)
}

func TestCacheEviction(t *testing.T) {
	l := NewLoader(LoaderOptions{CacheSize: 2})
	ctx := context.Background()
	for _, w := range []int{1, 2, 3} {
		_, err := l.Load(ctx, dataURI(encodePNG(t, w, 1)))
		test.Error(t, err)
	}
	test.T(t, len(l.cache), 2)
	test.T(t, len(l.order), 2)
}

func TestCacheKeepsRecentlyUsed(t *testing.T) {
	l := NewLoader(LoaderOptions{CacheSize: 2})
	ctx := context.Background()
	a, b, c := dataURI(encodePNG(t, 1, 1)), dataURI(encodePNG(t, 2, 1)), dataURI(encodePNG(t, 3, 1))

	first, err := l.Load(ctx, a)
	test.Error(t, err)
	_, err = l.Load(ctx, b)
	test.Error(t, err)
	_, err = l.Load(ctx, a) // a is now the most recent
	test.Error(t, err)
	_, err = l.Load(ctx, c) // evicts b
	test.Error(t, err)

	again, err := l.Load(ctx, a)
	test.Error(t, err)
	test.That(t, again == first, "recently used entry was evicted")
	_, ok := l.cached(blake2b.Sum256([]byte(b)))
	test.T(t, ok, false)
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir, 0)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="file"; filename="red.png"`},
		"Content-Type":        {"image/png"},
	})
	test.Error(t, err)
	part.Write(encodePNG(t, 4, 6))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	test.T(t, rec.Code, http.StatusOK)

	var resp UploadResponse
	test.Error(t, json.NewDecoder(rec.Body).Decode(&resp))
	test.T(t, resp.Width, 4)
	test.T(t, resp.Height, 6)
	test.T(t, resp.Name, "red.png")

	// the returned URL resolves through the loader
	l := NewLoader(LoaderOptions{Dir: dir})
	img, err := l.Load(context.Background(), resp.URL)
	test.Error(t, err)
	test.T(t, img.Bounds().Dx(), 4)

	del := func() int {
		req := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/api/assets/"+resp.ID, nil), map[string]string{"id": resp.ID})
		rec := httptest.NewRecorder()
		h.Remove(rec, req)
		return rec.Code
	}
	test.T(t, del(), http.StatusNoContent)
	_, err = os.Stat(filepath.Join(dir, resp.ID+".png"))
	test.That(t, errors.Is(err, os.ErrNotExist), err)
	test.T(t, del(), http.StatusNotFound)
	test.That(t, errors.Is(h.Delete(resp.ID), ErrNotFound))
}

func TestUploadPixelLimit(t *testing.T) {
	h := NewHandler(t.TempDir(), 20)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="file"; filename="big.png"`},
		"Content-Type":        {"image/png"},
	})
	test.Error(t, err)
	part.Write(encodePNG(t, 5, 5))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	test.T(t, rec.Code, http.StatusRequestEntityTooLarge)
}

func TestUploadRejectsType(t *testing.T) {
	h := NewHandler(t.TempDir(), 0)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	part.Write([]byte("hello"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	test.T(t, rec.Code, http.StatusBadRequest)
}
