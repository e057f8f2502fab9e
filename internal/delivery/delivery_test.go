package delivery

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admin-iq/iq-agent/internal/security"
)

func testProvider(t *testing.T) (*security.Provider, *rsa.PublicKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	provider, err := security.New("test-token", "test-client",
		base64.StdEncoding.EncodeToString(pemBytes))
	require.NoError(t, err)
	return provider, &key.PublicKey
}

func TestDeliverFirstAttempt(t *testing.T) {
	provider, pub := testProvider(t)
	payload := []byte(`{"source":"journald","properties":[{"name":"message","value":"x"}]}`)

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "test-client", r.Header.Get("Client-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, body)

		// The signature must verify against the exact bytes received.
		sig, err := base64.StdEncoding.DecodeString(r.Header.Get("Signature"))
		require.NoError(t, err)
		digest := sha256.Sum256(body)
		assert.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig))

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New(provider, 3, 5*time.Second, zerolog.Nop())
	err := client.Deliver(context.Background(), server.URL, "log", payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDeliverRecoversWithinCeiling(t *testing.T) {
	provider, _ := testProvider(t)

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New(provider, 3, 5*time.Second, zerolog.Nop())
	err := client.Deliver(context.Background(), server.URL, "log", []byte(`{}`))
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDeliverExhaustsCeiling(t *testing.T) {
	provider, _ := testProvider(t)

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"ingest backend unavailable"}`))
	}))
	defer server.Close()

	client := New(provider, 3, 5*time.Second, zerolog.Nop())
	err := client.Deliver(context.Background(), server.URL, "log", []byte(`{}`))
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorContains(t, err, "ingest backend unavailable")
	assert.Equal(t, 3, calls)
}

func TestDeliverNonJSONErrorBody(t *testing.T) {
	provider, _ := testProvider(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client := New(provider, 2, 5*time.Second, zerolog.Nop())
	err := client.Deliver(context.Background(), server.URL, "vitals", []byte(`{}`))
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorContains(t, err, "bad gateway")
}

func TestDeliverUnreachable(t *testing.T) {
	provider, _ := testProvider(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(provider, 2, time.Second, zerolog.Nop())
	err := client.Deliver(context.Background(), server.URL, "log", []byte(`{}`))
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestErrorDetail(t *testing.T) {
	assert.Equal(t, "nope", errorDetail([]byte(`{"detail":"nope"}`)))
	assert.Equal(t, `{"code":42}`, errorDetail([]byte(`{"detail":{"code":42}}`)))
	assert.Equal(t, "plain text", errorDetail([]byte("plain text")))
	assert.Equal(t, "", errorDetail(nil))
}
