package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGridMailer_Send(t *testing.T) {
	var captured mailSendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	mailer, err := NewSendGridMailer("sg-key", server.URL, "noreply@example.com", "Recap Service")
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		ToEmail:  "u@x.com",
		Subject:  "Your report",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
	})
	require.NoError(t, err)

	require.Len(t, captured.Personalizations, 1)
	assert.Equal(t, "u@x.com", captured.Personalizations[0].To[0].Email)
	assert.Equal(t, "noreply@example.com", captured.From.Email)
	assert.Equal(t, "Recap Service", captured.From.Name)
	require.Len(t, captured.Content, 2)
	assert.Equal(t, "text/plain", captured.Content[0].Type)
	assert.Equal(t, "text/html", captured.Content[1].Type)
}

func TestSendGridMailer_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors": [{"message": "bad key"}]}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	mailer, err := NewSendGridMailer("sg-key", server.URL, "noreply@example.com", "")
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{ToEmail: "u@x.com", Subject: "s", TextBody: "b"})
	require.Error(t, err)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, http.StatusUnauthorized, sendErr.StatusCode)
}

func TestSendGridMailer_Validation(t *testing.T) {
	_, err := NewSendGridMailer("", "", "noreply@example.com", "")
	assert.Error(t, err)

	_, err = NewSendGridMailer("sg-key", "", "", "")
	assert.Error(t, err)

	mailer, err := NewSendGridMailer("sg-key", "", "noreply@example.com", "")
	require.NoError(t, err)

	assert.Error(t, mailer.Send(context.Background(), Message{Subject: "s", TextBody: "b"}))
	assert.Error(t, mailer.Send(context.Background(), Message{ToEmail: "u@x.com", TextBody: "b"}))
	assert.Error(t, mailer.Send(context.Background(), Message{ToEmail: "u@x.com", Subject: "s"}))
}
