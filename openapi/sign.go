package openapi

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Platform signing constants carried in every request.
const (
	signatureMethod  = "HMAC-SHA256"
	signatureVersion = "1.0"
)

// contentMD5 returns the lowercase hex MD5 of the request body. The
// platform mandates MD5 here; it is an integrity tag, not a security
// primitive.
func contentMD5(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// canonicalString joins every x-bili-* header as "key:value" lines,
// sorted by key, with no trailing newline. This is the exact string
// the platform verifies the signature over.
func canonicalString(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		if strings.HasPrefix(k, "x-bili-") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, headers[k]))
	}
	return strings.Join(parts, "\n")
}

// sign computes the lowercase hex HMAC-SHA256 of the canonical string.
func sign(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedHeaders builds the full header set for one request body.
func (c *Client) signedHeaders(body []byte) map[string]string {
	bili := map[string]string{
		"x-bili-accesskeyid":       c.keyID,
		"x-bili-content-md5":       contentMD5(body),
		"x-bili-signature-method":  signatureMethod,
		"x-bili-signature-nonce":   c.nonce(),
		"x-bili-signature-version": signatureVersion,
		"x-bili-timestamp":         fmt.Sprintf("%d", c.now().Unix()),
	}
	headers := map[string]string{
		"Accept":        "application/json",
		"Content-Type":  "application/json",
		"Authorization": sign(c.keySecret, canonicalString(bili)),
	}
	for k, v := range bili {
		headers[k] = v
	}
	return headers
}
