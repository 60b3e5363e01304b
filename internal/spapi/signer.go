package spapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	signingService   = "execute-api"
	userAgent        = "PriceGap/1.0 (Language=Go)"

	amzDateFormat   = "20060102T150405Z"
	dateStampFormat = "20060102"
)

// Signer produces SigV4-signed headers for marketplace API requests.
// It is implemented from scratch so the canonicalization rules stay
// bit-exact with the wire protocol and testable in isolation.
//
// Sign is a pure function of its inputs plus the long-lived credentials:
// the same method, path, query, body and timestamp always yield the same
// headers.
type Signer struct {
	accessKeyID     string
	secretAccessKey string
	securityToken   string
	host            string
	region          string
}

// NewSigner creates a signer for the given host/region and credentials.
func NewSigner(accessKeyID, secretAccessKey, securityToken, host, region string) *Signer {
	return &Signer{
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
		securityToken:   securityToken,
		host:            host,
		region:          region,
	}
}

// Sign builds the signed header set for one request. The timestamp is
// injected by the caller; it is truncated to UTC seconds.
func (s *Signer) Sign(method, path string, query url.Values, body string, now time.Time) map[string]string {
	t := now.UTC()
	amzDate := t.Format(amzDateFormat)
	dateStamp := t.Format(dateStampFormat)

	canonicalURI := encodePath(path)
	canonicalQuery := canonicalQueryString(query)

	canonicalHeaders := "host:" + s.host + "\n" +
		"user-agent:" + userAgent + "\n" +
		"x-amz-date:" + amzDate + "\n"
	signedHeaders := "host;user-agent;x-amz-date"

	payloadHash := hexSHA256([]byte(body))

	canonicalRequest := strings.Join([]string{
		method,
		canonicalURI,
		canonicalQuery,
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := strings.Join([]string{dateStamp, s.region, signingService, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		credentialScope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	signingKey := s.deriveSigningKey(dateStamp)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	authorization := signingAlgorithm +
		" Credential=" + s.accessKeyID + "/" + credentialScope +
		", SignedHeaders=" + signedHeaders +
		", Signature=" + signature

	headers := map[string]string{
		"host":          s.host,
		"user-agent":    userAgent,
		"x-amz-date":    amzDate,
		"Authorization": authorization,
	}
	if s.securityToken != "" {
		headers["x-amz-security-token"] = s.securityToken
	}
	return headers
}

// deriveSigningKey chains four HMAC operations seeded with the secret key.
func (s *Signer) deriveSigningKey(dateStamp string) []byte {
	key := hmacSHA256([]byte("AWS4"+s.secretAccessKey), dateStamp)
	key = hmacSHA256(key, s.region)
	key = hmacSHA256(key, signingService)
	return hmacSHA256(key, "aws4_request")
}

// canonicalQueryString sorts parameters lexicographically by key and
// percent-encodes keys and values with '~' left unescaped.
func canonicalQueryString(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, percentEncode(k)+"="+percentEncode(v))
		}
	}
	return strings.Join(parts, "&")
}

// encodePath percent-encodes a URI path, leaving segment separators alone.
func encodePath(path string) string {
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' || isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(escapeByte(c))
	}
	return b.String()
}

// percentEncode escapes everything outside the RFC 3986 unreserved set.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(escapeByte(c))
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.' || c == '~'
}

const upperhex = "0123456789ABCDEF"

func escapeByte(c byte) string {
	return string([]byte{'%', upperhex[c>>4], upperhex[c&0xf]})
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
