package poller

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Key identifies one cache entry.
type Key struct {
	DeviceID string
	Address  uint16
}

// Entry holds the last decoded value for one register.
//
// Value is post-scale-factor. ReadAt is the freshness signal: consumers of a
// device whose polls are failing keep seeing the last good value with an
// ageing ReadAt.
type Entry struct {
	DeviceID string    `json:"device_id"`
	Address  uint16    `json:"address"`
	Value    float64   `json:"value"`
	ReadAt   time.Time `json:"read_at"`
}

// Cache is the shared register value cache.
//
// Entries are immutable once stored; an update swaps the whole entry, so
// concurrent readers always observe a fully-written value. Safe for
// concurrent use by any number of pollers and readers.
type Cache struct {
	entries *xsync.MapOf[Key, Entry]
}

// NewCache creates an empty register cache.
func NewCache() *Cache {
	return &Cache{entries: xsync.NewMapOf[Key, Entry]()}
}

// Put stores the decoded value for (deviceID, address), overwriting any
// previous entry.
func (c *Cache) Put(e Entry) {
	c.entries.Store(Key{DeviceID: e.DeviceID, Address: e.Address}, e)
}

// Get returns the last decoded value for (deviceID, address).
//
// The second return is false when the register has never been successfully
// read; absent entries are never defaulted.
func (c *Cache) Get(deviceID string, address uint16) (Entry, bool) {
	return c.entries.Load(Key{DeviceID: deviceID, Address: address})
}

// DropDevice removes every entry for one device. Called only on device
// removal; poll failures never drop entries.
func (c *Cache) DropDevice(deviceID string) {
	c.entries.Range(func(k Key, _ Entry) bool {
		if k.DeviceID == deviceID {
			c.entries.Delete(k)
		}
		return true
	})
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Snapshot returns a copy of all entries for one device.
func (c *Cache) Snapshot(deviceID string) []Entry {
	var out []Entry
	c.entries.Range(func(k Key, e Entry) bool {
		if k.DeviceID == deviceID {
			out = append(out, e)
		}
		return true
	})
	return out
}
