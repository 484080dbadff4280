package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
)

// Catalog is the durable record of what the mirror has fetched, what is
// permanently unavailable and what was deleted on purpose. It is backed by a
// single JSON file that stays open for the lifetime of the process.
//
// Every mutating method persists the full state before returning, so a crash
// between two steps loses at most the operation that was in flight.
type Catalog struct {
	path string
	file *os.File
	data *CatalogData
	mu   sync.RWMutex
}

// OpenCatalog opens (or creates) the catalog file at path and loads it.
func OpenCatalog(path string) (*Catalog, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if errors.Is(err, os.ErrNotExist) {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	}
	if err != nil {
		return nil, &StorageError{Op: "open", Entity: "catalog", ID: path, Err: err}
	}

	c := &Catalog{path: path, file: f}
	if err := c.Load(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

// Path returns the backing file path.
func (c *Catalog) Path() string { return c.path }

// Load reads the backing file and merges it onto the defaults. An empty file
// yields the defaults; fields missing from the file keep their defaults.
func (c *Catalog) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return &StorageError{Op: "read", Entity: "catalog", Err: ErrClosed}
	}

	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return &StorageError{Op: "read", Entity: "catalog", Err: err}
	}
	raw, err := io.ReadAll(c.file)
	if err != nil {
		return &StorageError{Op: "read", Entity: "catalog", Err: err}
	}

	data := newCatalogData()
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, data); err != nil {
			return &StorageError{Op: "read", Entity: "catalog", ID: c.path, Err: ErrStorageCorrupt}
		}
	}
	data.normalize()

	c.data = data
	return nil
}

// Save writes the full in-memory state at offset zero, truncates the file
// to the new length and syncs it.
func (c *Catalog) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save()
}

func (c *Catalog) save() error {
	if c.file == nil {
		return &StorageError{Op: "write", Entity: "catalog", Err: ErrClosed}
	}

	buf, err := json.Marshal(c.data)
	if err != nil {
		return &StorageError{Op: "write", Entity: "catalog", Err: err}
	}
	if _, err := c.file.WriteAt(buf, 0); err != nil {
		return &StorageError{Op: "write", Entity: "catalog", Err: err}
	}
	if err := c.file.Truncate(int64(len(buf))); err != nil {
		return &StorageError{Op: "write", Entity: "catalog", Err: err}
	}
	if err := c.file.Sync(); err != nil {
		return &StorageError{Op: "write", Entity: "catalog", Err: err}
	}
	return nil
}

// Close persists the state one last time and releases the file handle.
// Calling Close more than once is a no-op.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}
	saveErr := c.save()
	closeErr := c.file.Close()
	c.file = nil
	if saveErr != nil {
		return saveErr
	}
	if closeErr != nil {
		return &StorageError{Op: "close", Entity: "catalog", Err: closeErr}
	}
	return nil
}

// --- counters ---

// BeginInstance increments the startup counter and returns the new value.
func (c *Catalog) BeginInstance() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.InstanceCount++
	return c.data.InstanceCount, c.save()
}

// NextInvocation increments the downloader invocation counter and returns
// the new value. It is used to bucket per-invocation working directories.
func (c *Catalog) NextInvocation() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.FetchInvocationCount++
	return c.data.FetchInvocationCount, c.save()
}

// --- videos ---

// IsKnown reports whether id was fetched at least once.
func (c *Catalog) IsKnown(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.KnownVideos.Has(id)
}

// IsUnavailable reports whether id carries an unavailability tombstone.
func (c *Catalog) IsUnavailable(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data.UnavailableVideos[id]
	return ok
}

// UnavailableReason returns the recorded explanation for an unavailable id.
func (c *Catalog) UnavailableReason(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reason, ok := c.data.UnavailableVideos[id]
	return reason, ok
}

// IsDeleted reports whether id was deleted by the user.
func (c *Catalog) IsDeleted(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.DeletedVideos.Has(id)
}

// RecordDownload marks id as fetched.
func (c *Catalog) RecordDownload(id string) error {
	if id == "" {
		return &StorageError{Op: "update", Entity: "video", Err: ErrInvalidInput}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.KnownVideos.Add(id)
	return c.save()
}

// MarkUnavailable records a permanent failure for id.
func (c *Catalog) MarkUnavailable(id, reason string) error {
	if id == "" {
		return &StorageError{Op: "update", Entity: "video", Err: ErrInvalidInput}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.UnavailableVideos[id] = reason
	return c.save()
}

// MarkDeleted records a deletion tombstone for id. The id stays known.
func (c *Catalog) MarkDeleted(id string) error {
	if id == "" {
		return &StorageError{Op: "update", Entity: "video", Err: ErrInvalidInput}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.DeletedVideos.Add(id)
	return c.save()
}

// --- lists ---

// List returns a copy of the record for a playlist id.
func (c *Catalog) List(id string) (*ListRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.data.Lists[id]
	if !ok {
		return nil, &StorageError{Op: "read", Entity: "list", ID: id, Err: ErrNotFound}
	}
	return rec.clone(), nil
}

// TouchList updates lastChecked of an existing playlist record. Unknown ids
// are ignored.
func (c *Catalog) TouchList(id string, nowMillis int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.data.Lists[id]
	if !ok {
		return nil
	}
	rec.LastChecked = nowMillis
	return c.save()
}

// UpdateList merges rec onto the stored playlist record.
func (c *Catalog) UpdateList(rec ListRecord) error {
	if rec.ID == "" {
		return &StorageError{Op: "update", Entity: "list", Err: ErrInvalidInput}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Lists[rec.ID] = mergeList(c.data.Lists[rec.ID], rec)
	return c.save()
}

// AddListDownload records videoID as present in the playlist listID.
func (c *Catalog) AddListDownload(listID, videoID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.data.Lists[listID]
	if !ok {
		return &StorageError{Op: "update", Entity: "list", ID: listID, Err: ErrNotFound}
	}
	if !rec.Downloaded.Add(videoID) {
		return nil
	}
	return c.save()
}

// --- channels ---

// Channel returns a copy of the record for a channel id.
func (c *Catalog) Channel(id string) (*ChannelRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.data.Channels[id]
	if !ok {
		return nil, &StorageError{Op: "read", Entity: "channel", ID: id, Err: ErrNotFound}
	}
	return rec.clone(), nil
}

// TouchChannel updates lastChecked of an existing channel record. Unknown
// ids are ignored.
func (c *Catalog) TouchChannel(id string, nowMillis int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.data.Channels[id]
	if !ok {
		return nil
	}
	rec.LastChecked = nowMillis
	return c.save()
}

// UpdateChannel merges rec onto the stored channel record.
func (c *Catalog) UpdateChannel(rec ChannelRecord) error {
	if rec.ID == "" {
		return &StorageError{Op: "update", Entity: "channel", Err: ErrInvalidInput}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Channels[rec.ID] = mergeChannel(c.data.Channels[rec.ID], rec)
	return c.save()
}

// AddChannelDownload records videoID as downloaded through channelID.
func (c *Catalog) AddChannelDownload(channelID, videoID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.data.Channels[channelID]
	if !ok {
		return &StorageError{Op: "update", Entity: "channel", ID: channelID, Err: ErrNotFound}
	}
	if !rec.Downloaded.Add(videoID) {
		return nil
	}
	return c.save()
}

// --- whole-state reads ---

// Snapshot returns a deep copy of the in-memory state.
func (c *Catalog) Snapshot() CatalogData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.clone()
}

// Stats returns counters describing the catalog.
func (c *Catalog) Stats() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.data.Summary()
}

// ReadCatalog parses the catalog file at path without keeping it open or
// writing to it. A missing or empty file yields the defaults.
func ReadCatalog(path string) (*CatalogData, error) {
	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &StorageError{Op: "read", Entity: "catalog", ID: path, Err: err}
	}
	data := newCatalogData()
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, &StorageError{Op: "read", Entity: "catalog", ID: path, Err: ErrStorageCorrupt}
		}
	}
	data.normalize()
	return data, nil
}
