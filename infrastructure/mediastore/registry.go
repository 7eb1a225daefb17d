// Package mediastore implements the document and photo registry: it picks a fetcher for
// a locator, caches the bytes on disk and remembers the outcome in a state store.
package mediastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/future"
	"github.com/AzielCF/az-wrap/pkg/imagebox"
	"github.com/AzielCF/az-wrap/pkg/utils"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// URLPrefix is the path cached files are served under.
const URLPrefix = "/media/"

type Registry struct {
	dir      string
	state    media.IStateStore
	fetchers []media.IFetcher

	mu       sync.Mutex
	inflight map[string]*sharedFetch
}

// sharedFetch is one running fetch and the number of callers still waiting on it.
type sharedFetch struct {
	f       *future.Future[media.Resource]
	waiting int
}

var _ media.IRegistry = (*Registry)(nil)

// NewRegistry returns a registry caching files under dir. Fetchers are tried in order.
func NewRegistry(dir string, state media.IStateStore, fetchers ...media.IFetcher) *Registry {
	return &Registry{
		dir:      dir,
		state:    state,
		fetchers: fetchers,
		inflight: make(map[string]*sharedFetch),
	}
}

// AddFetcher appends a fetcher, e.g. once a WhatsApp session is connected.
func (r *Registry) AddFetcher(f media.IFetcher) {
	r.mu.Lock()
	r.fetchers = append(r.fetchers, f)
	r.mu.Unlock()
}

// Key returns the content address of d, or of one of its thumbs.
func Key(d media.Descriptor, thumb *media.Thumb) string {
	return d.Key(thumb)
}

func (r *Registry) Download(ctx context.Context, d media.Descriptor, thumb *media.Thumb) *future.Future[media.Resource] {
	if thumb != nil && thumb.Inline() {
		return future.Resolved(media.Resource{
			URL:      utils.DataURL(thumb.Bytes),
			MimeType: mimetype.Detect(thumb.Bytes).String(),
			Size:     int64(len(thumb.Bytes)),
		})
	}

	key := Key(d, thumb)
	if strings.TrimSpace(key) == "" {
		return future.Rejected[media.Resource](fmt.Errorf("%w: empty descriptor id", media.ErrInvariantViolation))
	}

	if st := r.State(ctx, key); st.Downloaded && st.URL != "" {
		return future.Resolved(media.Resource{URL: st.URL, Path: r.pathForURL(st.URL), MimeType: d.MimeType, Size: d.Size})
	}

	loc := d.Locator
	if thumb != nil {
		loc.ThumbSize = thumb.Type
	}
	fetcher := r.fetcherFor(loc)
	if fetcher == nil {
		return future.Rejected[media.Resource](fmt.Errorf("%w: %s", media.ErrNoLocator, key))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.inflight[key]
	if !ok || sh.f.Settled() {
		// The fetch outlives the caller's context; it stops once every caller cancelled.
		f, fctx := future.WithCancel[media.Resource](context.WithoutCancel(ctx))
		sh = &sharedFetch{f: f}
		r.inflight[key] = sh
		f.Then(func(_ media.Resource, _ error) {
			r.mu.Lock()
			if r.inflight[key] == sh {
				delete(r.inflight, key)
			}
			r.mu.Unlock()
		})
		go r.fetch(fctx, f, fetcher, d, loc, key)
	}
	sh.waiting++
	return future.Mirror(sh.f, func() { r.release(key, sh) })
}

// release drops one waiter of sh and cancels the fetch when none is left.
func (r *Registry) release(key string, sh *sharedFetch) {
	r.mu.Lock()
	sh.waiting--
	last := sh.waiting <= 0
	if last && r.inflight[key] == sh {
		delete(r.inflight, key)
	}
	r.mu.Unlock()
	if last {
		logrus.Debugf("[MEDIASTORE] fetch %s cancelled by every caller", key)
		sh.f.Cancel()
	}
}

func (r *Registry) fetch(ctx context.Context, f *future.Future[media.Resource], fetcher media.IFetcher, d media.Descriptor, loc media.Locator, key string) {
	data, err := fetcher.Fetch(ctx, loc, func(loaded, total int64) {
		f.Notify(future.Progress{Loaded: loaded, Total: total})
	})
	if err != nil {
		if ctx.Err() != nil {
			f.Reject(media.ErrCancelled)
			return
		}
		logrus.WithError(err).Warnf("[MEDIASTORE] fetch %s failed", key)
		f.Reject(fmt.Errorf("%w: %v", media.ErrTransportFailure, err))
		return
	}

	res, err := r.store(d, loc, data)
	if err != nil {
		logrus.WithError(err).Errorf("[MEDIASTORE] failed to cache %s", key)
		f.Reject(fmt.Errorf("%w: %v", media.ErrTransportFailure, err))
		return
	}
	if err := r.state.MarkDownloaded(ctx, key, res.URL); err != nil {
		logrus.WithError(err).Warnf("[MEDIASTORE] failed to mark %s downloaded", key)
	}
	logrus.Debugf("[MEDIASTORE] cached %s (%s)", key, utils.FormatBytes(res.Size, 1))
	f.Resolve(res)
}

func (r *Registry) store(d media.Descriptor, loc media.Locator, data []byte) (media.Resource, error) {
	ext := utils.ExtensionFor(data, d.MimeType)
	name := utils.FileNameByLocation(loc, strings.TrimPrefix(ext, "."))
	if name == "" {
		name = Key(d, nil) + ext
	}
	sub := string(d.Kind)
	if sub == "" {
		sub = "file"
	}
	dir := filepath.Join(r.dir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return media.Resource{}, err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return media.Resource{}, err
	}
	return media.Resource{
		URL:      URLPrefix + sub + "/" + name,
		Path:     path,
		MimeType: mimetype.Detect(data).String(),
		Size:     int64(len(data)),
	}, nil
}

func (r *Registry) pathForURL(url string) string {
	if !strings.HasPrefix(url, URLPrefix) {
		return ""
	}
	return filepath.Join(r.dir, filepath.FromSlash(strings.TrimPrefix(url, URLPrefix)))
}

func (r *Registry) fetcherFor(loc media.Locator) media.IFetcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.fetchers {
		if f.Supports(loc) {
			return f
		}
	}
	return nil
}

func (r *Registry) CachedURL(ctx context.Context, d media.Descriptor) (string, bool) {
	st := r.State(ctx, d.ID)
	return st.URL, st.Downloaded && st.URL != ""
}

func (r *Registry) ChoosePreviewSize(d media.Descriptor, maxW, maxH int) (media.Thumb, bool) {
	if len(d.Thumbs) == 0 {
		return media.Thumb{}, false
	}
	sizes := make([]imagebox.Size, len(d.Thumbs))
	for i, t := range d.Thumbs {
		sizes[i] = t.Size()
	}
	idx := imagebox.ChoosePhotoSize(sizes, maxW, maxH)
	if idx < 0 {
		return media.Thumb{}, false
	}
	return d.Thumbs[idx], true
}

func (r *Registry) PreviewURL(t media.Thumb) string {
	return utils.DataURL(t.Bytes)
}

func (r *Registry) State(ctx context.Context, id string) media.State {
	st, err := r.state.Get(ctx, id)
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Warnf("[MEDIASTORE] state lookup for %s failed", id)
	}
	return st
}

func (r *Registry) MarkThumbConverted(ctx context.Context, id string, thumb []byte) {
	if err := r.state.MarkThumbConverted(ctx, id, thumb); err != nil {
		logrus.WithError(err).Warnf("[MEDIASTORE] failed to store converted thumb for %s", id)
	}
}

// Inflight returns the number of fetches currently running.
func (r *Registry) Inflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
