package s3

import (
	"time"
)

// NullVersionID is the version id of entries written while a bucket has never
// had versioning enabled, or written during suspension.
const NullVersionID = "null"

// Checksum is an optional client-supplied object checksum.
type Checksum struct {
	Algorithm string // CRC32, CRC32C, SHA1, SHA256
	Value     string // base64
}

// ObjectMetadata carries everything about an object version except the body
// and the version bookkeeping.
type ObjectMetadata struct {
	ContentType        string
	ContentEncoding    string
	CacheControl       string
	ContentDisposition string
	ContentLanguage    string
	Expires            string
	StorageClass       string
	UserMetadata       map[string]string
	Tags               map[string]string
	Checksum           *Checksum
	SSEAlgorithm       string
	SSEKMSKeyID        string
	WebsiteRedirect    string
	ACL                string
	LockMode           string
	LockRetainUntil    *time.Time
	LegalHold          bool
}

// ObjectVersion is a stored object version with a body.
type ObjectVersion struct {
	Key          string
	VersionID    string
	ETag         string
	Size         int64
	LastModified time.Time
	BodyID       string
	Metadata     ObjectMetadata
	Owner        Owner
}

// DeleteMarker is a versioning entry with no body; when it is the newest
// entry for a key the key reads as absent.
type DeleteMarker struct {
	Key          string
	VersionID    string
	LastModified time.Time
	Owner        Owner
}

// VersionEntry is one element of a key's version chain: either an object
// version or a delete marker, never both.
type VersionEntry struct {
	Object *ObjectVersion
	Marker *DeleteMarker
}

// IsDeleteMarker reports whether the entry is a delete marker.
func (e VersionEntry) IsDeleteMarker() bool { return e.Marker != nil }

// VersionID returns the entry's version id regardless of variant.
func (e VersionEntry) VersionID() string {
	if e.Marker != nil {
		return e.Marker.VersionID
	}
	return e.Object.VersionID
}

// LastModified returns the entry's timestamp regardless of variant.
func (e VersionEntry) LastModified() time.Time {
	if e.Marker != nil {
		return e.Marker.LastModified
	}
	return e.Object.LastModified
}

// VersionChain is the newest-first list of entries for one key. The head is
// the latest entry.
type VersionChain struct {
	Key     string
	Entries []VersionEntry
}

// Latest returns the newest entry, or a zero entry when the chain is empty.
func (c *VersionChain) Latest() (VersionEntry, bool) {
	if len(c.Entries) == 0 {
		return VersionEntry{}, false
	}
	return c.Entries[0], true
}

// Find locates an entry by version id.
func (c *VersionChain) Find(versionID string) (VersionEntry, int, bool) {
	for i, entry := range c.Entries {
		if entry.VersionID() == versionID {
			return entry, i, true
		}
	}
	return VersionEntry{}, -1, false
}

// Prepend inserts a new latest entry.
func (c *VersionChain) Prepend(entry VersionEntry) {
	c.Entries = append([]VersionEntry{entry}, c.Entries...)
}

// RemoveAt drops the entry at index i.
func (c *VersionChain) RemoveAt(i int) {
	c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
}

// ReplaceNull removes any existing "null" entry and returns the removed
// object's body id, used when a put lands on a suspended bucket.
func (c *VersionChain) ReplaceNull() (bodyID string, removed bool) {
	for i, entry := range c.Entries {
		if entry.VersionID() == NullVersionID {
			if entry.Object != nil {
				bodyID = entry.Object.BodyID
			}
			c.RemoveAt(i)
			return bodyID, true
		}
	}
	return "", false
}
