package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
)

var entityIDPattern = regexp.MustCompile(`^[QPL][1-9][0-9]*$`)

// IsEntityID reports whether id looks like a knowledge-graph id such as Q42.
func IsEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

// IsHTTPURL reports whether raw is an absolute http or https URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// PayloadCacheKey is the document id of the raw feed payload for a calendar day.
func PayloadCacheKey(month, day int) string {
	return fmt.Sprintf("selected-%02d-%02d", month, day)
}

func DigestID(payloadCacheKey string) string {
	return "digest-" + payloadCacheKey
}

func SourceDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// AssetIDFromURL derives a stable media asset id from its source URL.
func AssetIDFromURL(provider, sourceURL string) string {
	hash := sha256.Sum256([]byte(sourceURL))
	return provider + "-" + hex.EncodeToString(hash[:])[:16]
}
