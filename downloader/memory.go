package downloader

import (
	"context"
	"sync"
	"time"
)

// Keeps successfully downloaded files in memory for CacheTTL. Failed
// downloads are never cached, and expired entries are never served.
type Memory struct {
	mutex sync.Mutex
	cache map[string]memoryCacheEntry

	TimeNow func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		cache:   make(map[string]memoryCacheEntry),
		TimeNow: time.Now,
	}
}

type memoryCacheEntry struct {
	data       []byte
	expiration time.Time
}

func (d *Memory) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if !options.Cache || options.CacheTTL <= 0 {
		return HTTPGet(ctx, url, headers, options)
	}

	// Held across the request, so that concurrent callers for the
	// same feed wait for one download instead of issuing their own.
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if entry, ok := d.cache[url]; ok {
		if entry.expiration.After(d.TimeNow()) {
			return entry.data, nil
		}
		delete(d.cache, url)
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	d.cache[url] = memoryCacheEntry{
		data:       body,
		expiration: d.TimeNow().Add(options.CacheTTL),
	}

	return body, nil
}
