package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/shopauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrevoMailerAccepted(t *testing.T) {
	var got brevoRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-1", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<abc@smtp-relay>"}`))
	}))
	defer srv.Close()

	m, err := NewBrevoMailer(BrevoConfig{APIKey: "key-1", FromEmail: "shop@example.com", FromName: "Shop", Endpoint: srv.URL})
	require.NoError(t, err)

	receipt, err := m.Send(context.Background(), shopauth.MailMessage{To: "a@example.com", Subject: "Verification code", HTML: "<h1>123456</h1>"})
	require.NoError(t, err)
	assert.True(t, receipt.Accepts("a@example.com"))
	assert.Equal(t, "<abc@smtp-relay>", receipt.MessageID)

	assert.Equal(t, "shop@example.com", got.Sender.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "a@example.com", got.To[0].Email)
	assert.Equal(t, "<h1>123456</h1>", got.HTMLContent)
}

func TestBrevoMailerRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid_parameter","message":"email is not valid"}`))
	}))
	defer srv.Close()

	m, err := NewBrevoMailer(BrevoConfig{APIKey: "k", FromEmail: "shop@example.com", Endpoint: srv.URL})
	require.NoError(t, err)

	receipt, err := m.Send(context.Background(), shopauth.MailMessage{To: "bad@example.com"})
	require.NoError(t, err)
	assert.False(t, receipt.Accepts("bad@example.com"))
	assert.Equal(t, []string{"bad@example.com"}, receipt.Rejected)
}

func TestBrevoMailerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized"}`))
	}))
	defer srv.Close()

	m, err := NewBrevoMailer(BrevoConfig{APIKey: "k", FromEmail: "shop@example.com", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = m.Send(context.Background(), shopauth.MailMessage{To: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNewBrevoMailerRequiresKey(t *testing.T) {
	_, err := NewBrevoMailer(BrevoConfig{FromEmail: "shop@example.com"})
	assert.Error(t, err)
}
