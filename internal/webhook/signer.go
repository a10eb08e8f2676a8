package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the header carrying the payload signature.
const SignatureHeader = "X-Meridian-Signature"

// Sign produces the signature header value for a payload: a unix timestamp
// and an HMAC-SHA256 of "<timestamp>.<payload>" keyed with the endpoint
// secret. The timestamp lets receivers reject replayed requests.
func Sign(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks a received signature header against the payload.
// Tolerance bounds the accepted clock skew; zero disables the check.
func VerifySignature(secret string, payload []byte, header string, now time.Time, tolerance time.Duration) bool {
	var ts int64
	var provided string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return false
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return false
			}
			ts = parsed
		case "v1":
			provided = value
		}
	}
	if ts == 0 || provided == "" {
		return false
	}
	if tolerance > 0 {
		at := time.Unix(ts, 0)
		if at.Before(now.Add(-tolerance)) || at.After(now.Add(tolerance)) {
			return false
		}
	}
	expected := Sign(secret, payload, time.Unix(ts, 0))
	_, expectedMAC, _ := strings.Cut(expected, "v1=")
	return hmac.Equal([]byte(expectedMAC), []byte(provided))
}
