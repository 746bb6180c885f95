package cache

import (
	"sync"
	"time"

	goCache "github.com/patrickmn/go-cache"

	"passbridge/pkg/entities"
)

var (
	templateCache     *goCache.Cache
	templateCacheOnce sync.Once

	imageCache     *goCache.Cache
	imageCacheOnce sync.Once
)

// GetTemplateCache caches templates by id. Templates change rarely but are
// read on every pass rebuild, so a short TTL keeps rebuild latency flat
// without serving stale designs for long.
func GetTemplateCache() *goCache.Cache {
	templateCacheOnce.Do(func() {
		templateCache = goCache.New(5*time.Minute, 10*time.Minute)
	})

	return templateCache
}

// GetImageCache caches fetched asset blobs by store key.
func GetImageCache() *goCache.Cache {
	imageCacheOnce.Do(func() {
		imageCache = goCache.New(15*time.Minute, 30*time.Minute)
	})

	return imageCache
}

func GetTemplate(id string) (*entities.PassTemplate, bool) {
	val, ok := GetTemplateCache().Get(id)
	if !ok {
		return nil, false
	}

	tmpl, ok := val.(*entities.PassTemplate)

	return tmpl, ok
}

func SetTemplate(tmpl *entities.PassTemplate) {
	GetTemplateCache().Set(tmpl.ID, tmpl, goCache.DefaultExpiration)
}

func InvalidateTemplate(id string) {
	GetTemplateCache().Delete(id)
}

func GetImage(key string) ([]byte, bool) {
	val, ok := GetImageCache().Get(key)
	if !ok {
		return nil, false
	}

	data, ok := val.([]byte)

	return data, ok
}

func SetImage(key string, data []byte) {
	GetImageCache().Set(key, data, goCache.DefaultExpiration)
}
