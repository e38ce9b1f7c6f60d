package pinning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatechain/server/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestClient_PinBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("pinata_api_key"))
		assert.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "house.jpg", header.Filename)
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, content)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"IpfsHash":"QmImage","PinSize":3,"Timestamp":"2024-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, Credentials{APIKey: "key", SecretKey: "secret"}, time.Second, quietLogger())
	cid, err := client.PinBytes(context.Background(), "house.jpg", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	assert.Equal(t, "QmImage", cid)
}

func TestClient_PinDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinJSONToIPFS", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		var body struct {
			PinataContent models.TokenMetadata `json:"pinataContent"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, models.TokenMetadata{Name: "1", Image: "QmImage"}, body.PinataContent)

		_, _ = w.Write([]byte(`{"IpfsHash":"QmMeta"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", Credentials{JWT: "token", APIKey: "ignored"}, time.Second, quietLogger())
	cid, err := client.PinDocument(context.Background(), "1.json", models.TokenMetadata{Name: "1", Image: "QmImage"})
	require.NoError(t, err)
	assert.Equal(t, "QmMeta", cid)
}

func TestClient_PinFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "Unauthorized", status: http.StatusUnauthorized, body: `{}`, wantMsg: "invalid pinning credentials"},
		{name: "Rate limited", status: http.StatusTooManyRequests, body: `{}`, wantMsg: "rate limited"},
		{name: "Server error", status: http.StatusInternalServerError, body: `boom`, wantMsg: "status 500: boom"},
		{name: "Missing hash", status: http.StatusOK, body: `{}`, wantMsg: "no content address"},
		{name: "Garbage body", status: http.StatusOK, body: `<html>`, wantMsg: "failed to parse response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, Credentials{JWT: "token"}, time.Second, quietLogger())
			_, err := client.PinDocument(context.Background(), "doc", map[string]string{"a": "b"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrPinningFailed))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_PinBytesRejectsEmptyContent(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", Credentials{JWT: "token"}, time.Second, quietLogger())
	_, err := client.PinBytes(context.Background(), "empty", nil)
	assert.ErrorIs(t, err, models.ErrPinningFailed)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, Credentials{JWT: "token"}, time.Second, quietLogger())
	_, err := client.PinBytes(context.Background(), "house.jpg", []byte("x"))
	assert.ErrorIs(t, err, models.ErrPinningFailed)
}

func TestLinks(t *testing.T) {
	assert.Equal(t, "ipfs://QmMeta", URI("QmMeta"))
	assert.Equal(t, "QmMeta", CIDFromURI("ipfs://QmMeta"))
	assert.Equal(t, "QmMeta", CIDFromURI("QmMeta"))
	assert.Equal(t, "https://ipfs.io/ipfs/QmMeta", GatewayLink("ipfs.io", "QmMeta"))
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/QmMeta", GatewayLink("https://gateway.pinata.cloud/", "ipfs://QmMeta"))
}
