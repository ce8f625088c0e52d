package s3

import (
	"net"
	"strings"
	"time"
)

// VersioningStatus is the three-value bucket versioning attribute.
type VersioningStatus string

const (
	VersioningUnversioned VersioningStatus = ""
	VersioningEnabled     VersioningStatus = "Enabled"
	VersioningSuspended   VersioningStatus = "Suspended"
)

// Owner identifies the account that owns a bucket or object version.
type Owner struct {
	ID          string
	DisplayName string
}

// CORSRule is one entry of a bucket CORS configuration.
type CORSRule struct {
	ID             string
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposeHeaders  []string
	MaxAgeSeconds  int
}

// ObjectLockConfig holds bucket object-lock settings. Enabling object lock
// requires versioning to be enabled.
type ObjectLockConfig struct {
	Enabled     bool
	Mode        string
	RetainDays  int
	RetainYears int
}

// PublicAccessBlock mirrors the four S3 public-access flags.
type PublicAccessBlock struct {
	BlockPublicACLs       bool
	IgnorePublicACLs      bool
	BlockPublicPolicy     bool
	RestrictPublicBuckets bool
}

// Bucket is the per-bucket configuration state. The object key space and the
// multipart upload map live in the store, not here.
type Bucket struct {
	Name      string
	Region    string
	Owner     Owner
	CreatedAt time.Time

	Versioning VersioningStatus

	// Optional sub-configurations; nil/empty means never configured.
	CORSRules          []CORSRule
	LifecycleConfig    string
	Tags               map[string]string
	Policy             string
	EncryptionConfig   string
	ObjectLock         *ObjectLockConfig
	PublicAccessBlock  *PublicAccessBlock
	OwnershipControls  string
	ACL                string
	AccelerateStatus   string
	RequestPayer       string
	WebsiteConfig      string
	LoggingConfig      string
	NotificationConfig string
}

// bucket name length bounds
const (
	minBucketNameLen = 3
	maxBucketNameLen = 63
)

// MaxKeyBytes bounds object key length.
const MaxKeyBytes = 1024

// ValidBucketName reports whether a bucket name satisfies the S3 rules:
// 3-63 characters of lowercase alphanumerics, `-` and `.`; starts and ends
// with a letter or digit; no `..`; not IP-shaped; no `xn--`/`sthree-` prefix;
// no `-s3alias` suffix.
func ValidBucketName(name string) bool {
	if len(name) < minBucketNameLen || len(name) > maxBucketNameLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLowerAlnum := (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
		if !isLowerAlnum && c != '-' && c != '.' {
			return false
		}
	}
	first, last := name[0], name[len(name)-1]
	if first == '-' || first == '.' || last == '-' || last == '.' {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if net.ParseIP(name) != nil {
		return false
	}
	if strings.HasPrefix(name, "xn--") || strings.HasPrefix(name, "sthree-") {
		return false
	}
	if strings.HasSuffix(name, "-s3alias") {
		return false
	}
	return true
}

// ValidObjectKey reports whether a key is non-empty and within the length cap.
func ValidObjectKey(key string) bool {
	return key != "" && len(key) <= MaxKeyBytes
}

// tag constraints
const (
	maxTags        = 10
	maxTagKeyLen   = 128
	maxTagValueLen = 256
)

// ValidateTags checks a tag set against the S3 limits.
func ValidateTags(tags map[string]string) error {
	if len(tags) > maxTags {
		return errTooManyTags
	}
	for key, value := range tags {
		if key == "" || len(key) > maxTagKeyLen {
			return errInvalidTagKey
		}
		if len(value) > maxTagValueLen {
			return errInvalidTagValue
		}
	}
	return nil
}

// MaxMetadataSize bounds the aggregate size of user metadata.
const MaxMetadataSize = 2048

// ValidateMetadata checks the x-amz-meta-* map size.
func ValidateMetadata(metadata map[string]string) error {
	total := 0
	for key, value := range metadata {
		total += len(key) + len(value)
	}
	if total > MaxMetadataSize {
		return errMetadataTooLarge
	}
	return nil
}
