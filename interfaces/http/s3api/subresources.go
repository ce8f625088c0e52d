package s3api

import (
	"encoding/xml"
	"net/http"
	"sort"
	"strings"

	"localcloud/domain/s3"
	apperrors "localcloud/pkg/errors"
)

// handleBucketSubResource serves the Get/Put/Delete bucket configuration
// endpoints. Versioning, CORS, tagging, ACL and object lock are handled
// explicitly and the public access block is parsed and re-rendered; the
// policy and the opaqueConfigs entries are stored as the documents the
// client sent and echoed back.
func (s *Service) handleBucketSubResource(op string, ctx *requestContext) error {
	bucket, err := s.store.Bucket(ctx.bucket)
	if err != nil {
		return err
	}

	switch op {
	case "GetBucketVersioning":
		config := versioningConfiguration{Xmlns: s3Namespace, Status: string(bucket.Versioning)}
		return s.writeXML(ctx.w, http.StatusOK, config)

	case "PutBucketVersioning":
		return s.putBucketVersioning(ctx)

	case "GetBucketCors":
		if len(bucket.CORSRules) == 0 {
			return apperrors.Newf(apperrors.ErrorTypeNotFound, "NoSuchCORSConfiguration",
				"The CORS configuration does not exist").WithResource(ctx.bucket)
		}
		config := corsConfiguration{Xmlns: s3Namespace}
		for _, rule := range bucket.CORSRules {
			config.Rules = append(config.Rules, corsRuleXML{
				ID:             rule.ID,
				AllowedOrigins: rule.AllowedOrigins,
				AllowedMethods: rule.AllowedMethods,
				AllowedHeaders: rule.AllowedHeaders,
				ExposeHeaders:  rule.ExposeHeaders,
				MaxAgeSeconds:  rule.MaxAgeSeconds,
			})
		}
		return s.writeXML(ctx.w, http.StatusOK, config)

	case "PutBucketCors":
		var config corsConfiguration
		if err := xml.Unmarshal(ctx.body, &config); err != nil {
			return apperrors.MalformedXML()
		}
		rules := make([]s3.CORSRule, 0, len(config.Rules))
		for _, rule := range config.Rules {
			if len(rule.AllowedOrigins) == 0 || len(rule.AllowedMethods) == 0 {
				return apperrors.MalformedXML()
			}
			rules = append(rules, s3.CORSRule{
				ID:             rule.ID,
				AllowedOrigins: rule.AllowedOrigins,
				AllowedMethods: rule.AllowedMethods,
				AllowedHeaders: rule.AllowedHeaders,
				ExposeHeaders:  rule.ExposeHeaders,
				MaxAgeSeconds:  rule.MaxAgeSeconds,
			})
		}
		return s.updateAndRespond(ctx, func(bucket *s3.Bucket) error {
			bucket.CORSRules = rules
			return nil
		})

	case "DeleteBucketCors":
		return s.updateAndDelete(ctx, func(bucket *s3.Bucket) { bucket.CORSRules = nil })

	case "GetBucketTagging":
		if len(bucket.Tags) == 0 {
			return apperrors.Newf(apperrors.ErrorTypeNotFound, "NoSuchTagSet",
				"The TagSet does not exist").WithResource(ctx.bucket)
		}
		return s.writeXML(ctx.w, http.StatusOK, tagsToXML(bucket.Tags))

	case "PutBucketTagging":
		var config taggingXML
		if err := xml.Unmarshal(ctx.body, &config); err != nil {
			return apperrors.MalformedXML()
		}
		tags := map[string]string{}
		for _, tag := range config.Tags {
			tags[tag.Key] = tag.Value
		}
		if err := s3.ValidateTags(tags); err != nil {
			return apperrors.InvalidTag(err.Error())
		}
		return s.updateAndRespond(ctx, func(bucket *s3.Bucket) error {
			bucket.Tags = tags
			return nil
		})

	case "DeleteBucketTagging":
		return s.updateAndDelete(ctx, func(bucket *s3.Bucket) { bucket.Tags = nil })

	case "GetBucketPolicy":
		if bucket.Policy == "" {
			return apperrors.Newf(apperrors.ErrorTypeNotFound, "NoSuchBucketPolicy",
				"The bucket policy does not exist").WithResource(ctx.bucket)
		}
		ctx.w.Header().Set("Content-Type", "application/json")
		ctx.w.WriteHeader(http.StatusOK)
		ctx.w.Write([]byte(bucket.Policy))
		return nil

	case "PutBucketPolicy":
		policy := string(ctx.body)
		if !strings.HasPrefix(strings.TrimSpace(policy), "{") {
			return apperrors.InvalidArgument("policies must be valid JSON")
		}
		return s.updateAndRespond(ctx, func(bucket *s3.Bucket) error {
			bucket.Policy = policy
			return nil
		})

	case "DeleteBucketPolicy":
		return s.updateAndDelete(ctx, func(bucket *s3.Bucket) { bucket.Policy = "" })

	case "GetBucketAcl":
		return s.writeXML(ctx.w, http.StatusOK, accessControlPolicy{
			Xmlns: s3Namespace,
			Owner: ownerXML{ID: bucket.Owner.ID, DisplayName: bucket.Owner.DisplayName},
		})

	case "PutBucketAcl":
		acl := ctx.r.Header.Get("x-amz-acl")
		return s.updateAndRespond(ctx, func(bucket *s3.Bucket) error {
			bucket.ACL = acl
			return nil
		})

	case "GetBucketObjectLockConfiguration":
		if bucket.ObjectLock == nil {
			return apperrors.Newf(apperrors.ErrorTypeNotFound, "ObjectLockConfigurationNotFoundError",
				"Object Lock configuration does not exist for this bucket").WithResource(ctx.bucket)
		}
		ctx.w.Header().Set("Content-Type", "application/xml")
		ctx.w.WriteHeader(http.StatusOK)
		ctx.w.Write([]byte(xmlHeader))
		ctx.w.Write([]byte(`<ObjectLockConfiguration xmlns="` + s3Namespace + `"><ObjectLockEnabled>Enabled</ObjectLockEnabled></ObjectLockConfiguration>`))
		return nil

	case "PutBucketObjectLockConfiguration":
		if bucket.Versioning != s3.VersioningEnabled {
			return apperrors.InvalidArgument("object lock requires bucket versioning to be enabled")
		}
		return s.updateAndRespond(ctx, func(bucket *s3.Bucket) error {
			bucket.ObjectLock = &s3.ObjectLockConfig{Enabled: true}
			return nil
		})

	default:
		return s.handleOpaqueSubResource(op, ctx, &bucket)
	}
}

// opaqueConfigs maps the operation suffix to accessors for configurations
// that are stored verbatim.
type opaqueAccessor struct {
	get          func(*s3.Bucket) string
	set          func(*s3.Bucket, string)
	missingCode  string
	missingEmpty string // returned instead of an error when non-empty
}

var opaqueConfigs = map[string]opaqueAccessor{
	"Lifecycle": {
		get:         func(b *s3.Bucket) string { return b.LifecycleConfig },
		set:         func(b *s3.Bucket, doc string) { b.LifecycleConfig = doc },
		missingCode: "NoSuchLifecycleConfiguration",
	},
	"Encryption": {
		get:         func(b *s3.Bucket) string { return b.EncryptionConfig },
		set:         func(b *s3.Bucket, doc string) { b.EncryptionConfig = doc },
		missingCode: "ServerSideEncryptionConfigurationNotFoundError",
	},
	"PublicAccessBlock": {
		get:         func(b *s3.Bucket) string { return publicAccessBlockDoc(b) },
		set:         setPublicAccessBlock,
		missingCode: "NoSuchPublicAccessBlockConfiguration",
	},
	"OwnershipControls": {
		get:         func(b *s3.Bucket) string { return b.OwnershipControls },
		set:         func(b *s3.Bucket, doc string) { b.OwnershipControls = doc },
		missingCode: "OwnershipControlsNotFoundError",
	},
	"Website": {
		get:         func(b *s3.Bucket) string { return b.WebsiteConfig },
		set:         func(b *s3.Bucket, doc string) { b.WebsiteConfig = doc },
		missingCode: "NoSuchWebsiteConfiguration",
	},
	"Accelerate": {
		get:          func(b *s3.Bucket) string { return b.AccelerateStatus },
		set:          func(b *s3.Bucket, doc string) { b.AccelerateStatus = doc },
		missingEmpty: `<AccelerateConfiguration xmlns="` + s3Namespace + `"/>`,
	},
	"RequestPayment": {
		get:          func(b *s3.Bucket) string { return b.RequestPayer },
		set:          func(b *s3.Bucket, doc string) { b.RequestPayer = doc },
		missingEmpty: `<RequestPaymentConfiguration xmlns="` + s3Namespace + `"><Payer>BucketOwner</Payer></RequestPaymentConfiguration>`,
	},
	"Logging": {
		get:          func(b *s3.Bucket) string { return b.LoggingConfig },
		set:          func(b *s3.Bucket, doc string) { b.LoggingConfig = doc },
		missingEmpty: `<BucketLoggingStatus xmlns="` + s3Namespace + `"/>`,
	},
	"Notification": {
		get:          func(b *s3.Bucket) string { return b.NotificationConfig },
		set:          func(b *s3.Bucket, doc string) { b.NotificationConfig = doc },
		missingEmpty: `<NotificationConfiguration xmlns="` + s3Namespace + `"/>`,
	},
}

func (s *Service) handleOpaqueSubResource(op string, ctx *requestContext, bucket *s3.Bucket) error {
	verb, suffix := splitOp(op)
	accessor, ok := opaqueConfigs[suffix]
	if !ok {
		return apperrors.MethodNotAllowed()
	}

	switch verb {
	case "Get":
		doc := accessor.get(bucket)
		if doc == "" {
			if accessor.missingEmpty != "" {
				doc = accessor.missingEmpty
			} else {
				return apperrors.Newf(apperrors.ErrorTypeNotFound, accessor.missingCode,
					"The %s configuration does not exist", suffix).WithResource(ctx.bucket)
			}
		}
		ctx.w.Header().Set("Content-Type", "application/xml")
		ctx.w.WriteHeader(http.StatusOK)
		ctx.w.Write([]byte(xmlHeader))
		ctx.w.Write([]byte(doc))
		return nil

	case "Put":
		if len(ctx.body) == 0 || !looksLikeXML(ctx.body) {
			return apperrors.MalformedXML()
		}
		doc := string(ctx.body)
		return s.updateAndRespond(ctx, func(bucket *s3.Bucket) error {
			accessor.set(bucket, doc)
			return nil
		})

	case "Delete":
		return s.updateAndDelete(ctx, func(bucket *s3.Bucket) { accessor.set(bucket, "") })

	default:
		return apperrors.MethodNotAllowed()
	}
}

func (s *Service) putBucketVersioning(ctx *requestContext) error {
	var config versioningConfiguration
	if err := xml.Unmarshal(ctx.body, &config); err != nil {
		return apperrors.MalformedXML()
	}
	status := s3.VersioningStatus(config.Status)
	if status != s3.VersioningEnabled && status != s3.VersioningSuspended {
		return apperrors.Newf(apperrors.ErrorTypeInvalidArgument,
			"IllegalVersioningConfigurationException",
			"The Versioning element value %q is invalid", config.Status)
	}
	return s.updateAndRespond(ctx, func(bucket *s3.Bucket) error {
		if bucket.ObjectLock != nil && status == s3.VersioningSuspended {
			return apperrors.InvalidArgument("versioning cannot be suspended on an object-lock bucket")
		}
		bucket.Versioning = status
		return nil
	})
}

func (s *Service) updateAndRespond(ctx *requestContext, fn func(*s3.Bucket) error) error {
	if err := s.store.UpdateBucket(ctx.bucket, fn); err != nil {
		return err
	}
	ctx.w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Service) updateAndDelete(ctx *requestContext, fn func(*s3.Bucket)) error {
	err := s.store.UpdateBucket(ctx.bucket, func(bucket *s3.Bucket) error {
		fn(bucket)
		return nil
	})
	if err != nil {
		return err
	}
	ctx.w.WriteHeader(http.StatusNoContent)
	return nil
}

func splitOp(op string) (verb, suffix string) {
	for _, candidate := range []string{"Get", "Put", "Delete"} {
		if strings.HasPrefix(op, candidate+"Bucket") {
			return candidate, strings.TrimPrefix(op, candidate+"Bucket")
		}
	}
	return "", op
}

func looksLikeXML(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "<")
}

func publicAccessBlockDoc(bucket *s3.Bucket) string {
	if bucket.PublicAccessBlock == nil {
		return ""
	}
	pab := bucket.PublicAccessBlock
	return `<PublicAccessBlockConfiguration xmlns="` + s3Namespace + `">` +
		"<BlockPublicAcls>" + boolString(pab.BlockPublicACLs) + "</BlockPublicAcls>" +
		"<IgnorePublicAcls>" + boolString(pab.IgnorePublicACLs) + "</IgnorePublicAcls>" +
		"<BlockPublicPolicy>" + boolString(pab.BlockPublicPolicy) + "</BlockPublicPolicy>" +
		"<RestrictPublicBuckets>" + boolString(pab.RestrictPublicBuckets) + "</RestrictPublicBuckets>" +
		"</PublicAccessBlockConfiguration>"
}

func setPublicAccessBlock(bucket *s3.Bucket, doc string) {
	if doc == "" {
		bucket.PublicAccessBlock = nil
		return
	}
	var parsed struct {
		BlockPublicAcls       bool `xml:"BlockPublicAcls"`
		IgnorePublicAcls      bool `xml:"IgnorePublicAcls"`
		BlockPublicPolicy     bool `xml:"BlockPublicPolicy"`
		RestrictPublicBuckets bool `xml:"RestrictPublicBuckets"`
	}
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		return
	}
	bucket.PublicAccessBlock = &s3.PublicAccessBlock{
		BlockPublicACLs:       parsed.BlockPublicAcls,
		IgnorePublicACLs:      parsed.IgnorePublicAcls,
		BlockPublicPolicy:     parsed.BlockPublicPolicy,
		RestrictPublicBuckets: parsed.RestrictPublicBuckets,
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func tagsToXML(tags map[string]string) taggingXML {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	doc := taggingXML{Xmlns: s3Namespace}
	for _, key := range keys {
		doc.Tags = append(doc.Tags, tagXML{Key: key, Value: tags[key]})
	}
	return doc
}
