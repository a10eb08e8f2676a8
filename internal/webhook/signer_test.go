package webhook

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignProducesVerifiableSignature(t *testing.T) {
	at := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
	payload := []byte(`{"disbursement_id":"abc","status":"completed"}`)

	header := Sign("whsec_test", payload, at)
	require.True(t, strings.HasPrefix(header, "t=1773154800,v1="))

	assert.True(t, VerifySignature("whsec_test", payload, header, at, time.Minute))
	assert.False(t, VerifySignature("whsec_other", payload, header, at, time.Minute))
	assert.False(t, VerifySignature("whsec_test", []byte(`tampered`), header, at, time.Minute))
}

func TestVerifySignatureRejectsStaleTimestamps(t *testing.T) {
	at := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
	payload := []byte(`{}`)
	header := Sign("whsec_test", payload, at)

	assert.True(t, VerifySignature("whsec_test", payload, header, at.Add(2*time.Minute), 5*time.Minute))
	assert.False(t, VerifySignature("whsec_test", payload, header, at.Add(10*time.Minute), 5*time.Minute))
	// Zero tolerance disables the skew check.
	assert.True(t, VerifySignature("whsec_test", payload, header, at.Add(24*time.Hour), 0))
}

func TestVerifySignatureRejectsMalformedHeaders(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()
	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123", "nonsense"} {
		assert.False(t, VerifySignature("whsec_test", payload, header, now, 0), header)
	}
}
