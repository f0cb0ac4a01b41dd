package cache

import (
	"fmt"
	"image"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
)

// thumbKey identifies one rendered thumbnail. Rotation is part of the key so
// rotating a page never shows a stale image.
type thumbKey struct {
	fileID   string
	number   int
	rotation int
	width    int
	height   int
}

func newThumbKey(p page.Page, size page.Size) thumbKey {
	return thumbKey{
		fileID:   p.FileID,
		number:   p.Number,
		rotation: p.TotalRotation(),
		width:    int(size.Width),
		height:   int(size.Height),
	}
}

func (k thumbKey) String() string {
	return fmt.Sprintf("%s#%d@%d/%dx%d", k.fileID, k.number, k.rotation, k.width, k.height)
}

// thumbnails is a bounded store evicting the least recently used image.
type thumbnails struct {
	lru *lru.Cache[thumbKey, image.Image]
}

func newThumbnails(limit int) *thumbnails {
	if limit <= 0 {
		limit = DefaultMaxThumbnails
	}
	store, err := lru.New[thumbKey, image.Image](limit)
	if err != nil {
		// only a non-positive size fails
		panic(err)
	}
	return &thumbnails{lru: store}
}

func (t *thumbnails) get(key thumbKey) (image.Image, bool) { return t.lru.Get(key) }
func (t *thumbnails) put(key thumbKey, img image.Image)    { t.lru.Add(key, img) }
func (t *thumbnails) clear()                               { t.lru.Purge() }
func (t *thumbnails) len() int                             { return t.lru.Len() }

func (t *thumbnails) dropFile(fileID string) {
	for _, key := range t.lru.Keys() {
		if key.fileID == fileID {
			t.lru.Remove(key)
		}
	}
}
