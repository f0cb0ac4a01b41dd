package session

import (
	"sync"

	"github.com/pyhub-apps/pdfpages-golang/pkg/cache"
	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/render"
)

// liveKey is what a thumbnail shows: a source page under one rotation.
type liveKey struct {
	id       page.Identity
	rotation int
}

func keyOf(p page.Page) liveKey {
	return liveKey{id: p.Identity(), rotation: p.TotalRotation()}
}

// liveSet counts the collection pages per liveKey. Workers consult it to
// discard results for pages that were removed or rotated meanwhile.
type liveSet struct {
	mu   sync.RWMutex
	keys map[liveKey]int
}

func newLiveSet() *liveSet {
	return &liveSet{keys: make(map[liveKey]int)}
}

// reset replaces the set with the keys of pages and returns the pages whose
// key was not live before, once per key.
func (l *liveSet) reset(pages []page.Page) []page.Page {
	next := make(map[liveKey]int, len(pages))
	var added []page.Page

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range pages {
		k := keyOf(p)
		if next[k] == 0 && l.keys[k] == 0 {
			added = append(added, p)
		}
		next[k]++
	}
	l.keys = next
	return added
}

func (l *liveSet) contains(p page.Page) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.keys[keyOf(p)] > 0
}

// syncThumbnails refreshes the live set after a mutation and queues renders
// for pages that became visible.
func (s *Session) syncThumbnails() {
	added := s.live.reset(s.pages.Pages())
	if len(added) == 0 {
		return
	}
	size := page.Size{Width: s.cfg.ItemSize, Height: s.cfg.ItemSize}
	jobs := make([]render.Job, len(added))
	for i, p := range added {
		jobs[i] = render.Job{Page: p, Size: size}
	}
	s.pool.Submit(jobs...)
}

func (s *Session) deliverThumbnail(res render.Result) {
	if res.Err != nil {
		s.logger.Debug("thumbnail failed", "page", res.Page.Identity().String(), "error", res.Err)
		return
	}
	if !s.live.contains(res.Page) {
		s.logger.Debug("thumbnail discarded", "page", res.Page.Identity().String())
		return
	}
	s.emit(ThumbnailReady{
		Page:     res.Page.Identity(),
		Rotation: res.Page.TotalRotation(),
		Image:    res.Image,
	})
}

// sourceChanged handles a watcher notification for a backing file.
func (s *Session) sourceChanged(path string) {
	if s.closed.Load() {
		return
	}
	s.cache.Evict(path)
	s.logger.Info("backing file changed", "path", path)
	s.emit(SourceChanged{Path: cache.Key(path)})
}
