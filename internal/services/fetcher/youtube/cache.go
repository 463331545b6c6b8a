package youtube

import (
	"bytes"
	"encoding/gob"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketVideos = []byte("videos")

var errCacheMiss = errors.New("cache miss")

type cacheEntry struct {
	Title    string
	Length   float64
	CachedAt time.Time
}

// Cache keeps looked-up video metadata in a bolt file so repeat votes for
// the same video survive restarts without another API call.
type Cache struct {
	db  *bolt.DB
	ttl time.Duration
}

func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVideos)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db, ttl: ttl}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (c *Cache) get(id string) (cacheEntry, bool) {
	var e cacheEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVideos).Get([]byte(id))
		if b == nil {
			return errCacheMiss
		}
		return gobDecode(b, &e)
	})
	if err != nil || e.Title == "" {
		return cacheEntry{}, false
	}
	if c.ttl > 0 && time.Since(e.CachedAt) > c.ttl {
		return cacheEntry{}, false
	}
	return e, true
}

func (c *Cache) set(id string, e cacheEntry) {
	e.CachedAt = time.Now()
	data, err := gobEncode(e)
	if err != nil {
		return
	}
	_ = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVideos).Put([]byte(id), data)
	})
}
