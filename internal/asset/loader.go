package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnsupportedSource = errors.New("unsupported image source")
	ErrTooLarge          = errors.New("image exceeds size limit")
	ErrNotFound          = errors.New("asset not found")
	ErrDecode            = errors.New("image could not be decoded")
	ErrForbiddenHost     = errors.New("image host not allowed")
)

const (
	defaultMaxBytes    = 25 << 20
	defaultMaxPixels   = 40_000_000
	defaultConcurrency = 4
	defaultCacheSize   = 64
)

// LoaderOptions configures a Loader. Zero values pick defaults.
type LoaderOptions struct {
	Dir          string // where uploaded assets live; serves /assets/ URIs
	MaxBytes     int64
	MaxPixels    int // width*height limit checked before decoding
	FetchTimeout time.Duration
	Concurrency  int
	CacheSize    int
	// AllowPrivateHosts lets remote sources resolve to loopback, private
	// and link-local addresses. Ignored when Client is set.
	AllowPrivateHosts bool
	Client            *http.Client
	Logger            *slog.Logger
}

// Loader resolves image URIs (data:, http(s): and /assets/ paths) to decoded
// images. Results are kept in an LRU cache keyed by a hash of the URI. Safe
// for concurrent use.
type Loader struct {
	dir         string
	maxBytes    int64
	maxPixels   int
	concurrency int
	client      *http.Client
	logger      *slog.Logger

	mu        sync.Mutex
	cache     map[[32]byte]image.Image
	order     [][32]byte
	cacheSize int
}

func NewLoader(opts LoaderOptions) *Loader {
	l := &Loader{
		dir:         opts.Dir,
		maxBytes:    opts.MaxBytes,
		maxPixels:   opts.MaxPixels,
		concurrency: opts.Concurrency,
		client:      opts.Client,
		logger:      opts.Logger,
		cache:       make(map[[32]byte]image.Image),
		cacheSize:   opts.CacheSize,
	}
	if l.maxBytes <= 0 {
		l.maxBytes = defaultMaxBytes
	}
	if l.maxPixels <= 0 {
		l.maxPixels = defaultMaxPixels
	}
	if l.concurrency <= 0 {
		l.concurrency = defaultConcurrency
	}
	if l.cacheSize <= 0 {
		l.cacheSize = defaultCacheSize
	}
	if l.client == nil {
		timeout := opts.FetchTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		l.client = newClient(timeout, opts.AllowPrivateHosts)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Load resolves and decodes one image.
func (l *Loader) Load(ctx context.Context, src string) (image.Image, error) {
	key := blake2b.Sum256([]byte(src))
	if img, ok := l.cached(key); ok {
		return img, nil
	}

	data, err := l.fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	img, err := Decode(bytes.NewReader(data), l.maxPixels)
	if err != nil {
		return nil, err
	}

	l.store(key, img)
	return img, nil
}

// Decode decodes an image after checking its header dimensions against
// maxPixels, so a small file cannot claim a huge canvas.
func Decode(r io.ReadSeeker, maxPixels int) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind image: %w", err)
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// newClient returns the client for remote sources. Unless allowPrivate is
// set, connections to loopback, private and link-local addresses are refused
// at dial time, which also covers redirects and DNS names.
func newClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = refusePrivate
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

func refusePrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast() {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, ip)
	}
	return nil
}

// LoadAll loads every distinct source concurrently. A failed source never
// stops the others; its error is reported in failures.
func (l *Loader) LoadAll(ctx context.Context, sources []string) (images map[string]image.Image, failures map[string]error) {
	images = make(map[string]image.Image)
	failures = make(map[string]error)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(l.concurrency)

	seen := make(map[string]bool)
	for _, src := range sources {
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true

		g.Go(func() error {
			img, err := l.Load(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				l.logger.Warn("image load failed", "source", describe(src), "error", err)
				failures[src] = err
				return nil
			}
			images[src] = img
			return nil
		})
	}
	g.Wait()
	return images, failures
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return l.decodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetchRemote(ctx, src)
	case strings.HasPrefix(src, "/assets/"):
		return l.readAsset(strings.TrimPrefix(src, "/assets/"))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, describe(src))
}

// decodeDataURI reads data:[<mediatype>][;base64],<data>.
func (l *Loader) decodeDataURI(src string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", ErrUnsupportedSource)
	}
	if int64(len(payload)) > l.maxBytes*4/3+4 {
		return nil, ErrTooLarge
	}

	var data []byte
	var err error
	if strings.HasSuffix(header, ";base64") {
		payload = strings.TrimRight(payload, "=")
		data, err = base64.RawStdEncoding.DecodeString(payload)
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: data URI: %v", ErrDecode, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

func (l *Loader) fetchRemote(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	return readLimited(resp.Body, l.maxBytes)
}

func (l *Loader) readAsset(name string) ([]byte, error) {
	if l.dir == "" || name == "" {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(l.dir, filepath.Base(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()
	return readLimited(f, l.maxBytes)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// cached returns a cached image and marks it most recently used.
func (l *Loader) cached(key [32]byte) (image.Image, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	img, ok := l.cache[key]
	if ok {
		if i := slices.Index(l.order, key); i >= 0 {
			l.order = append(slices.Delete(l.order, i, i+1), key)
		}
	}
	return img, ok
}

// store adds an image, evicting the least recently used entries past the
// cache size.
func (l *Loader) store(key [32]byte, img image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[key]; ok {
		return
	}
	l.cache[key] = img
	l.order = append(l.order, key)
	for len(l.order) > l.cacheSize {
		delete(l.cache, l.order[0])
		l.order = l.order[1:]
	}
}

// describe shortens a source for logs; data URIs can be megabytes long.
func describe(src string) string {
	if strings.HasPrefix(src, "data:") {
		header, _, _ := strings.Cut(src, ",")
		return header + ",..."
	}
	if len(src) > 200 {
		return src[:200] + "..."
	}
	return src
}
