package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwilioSendPostsForm(t *testing.T) {
	var (
		gotPath string
		gotForm map[string]string
		gotUser string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"To":   r.PostForm.Get("To"),
			"From": r.PostForm.Get("From"),
			"Body": r.PostForm.Get("Body"),
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	p := NewTwilio(TwilioConfig{AccountSID: "AC123", AuthToken: "secret", From: "+15550001111", BaseURL: srv.URL + "/"}, srv.Client())
	require.NoError(t, p.Send(context.Background(), "+6281234567890", `You joined team "Ops"`))

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "+6281234567890", gotForm["To"])
	assert.Equal(t, "+15550001111", gotForm["From"])
	assert.Equal(t, `You joined team "Ops"`, gotForm["Body"])
}

func TestTwilioSendReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"invalid To"}`))
	}))
	defer srv.Close()

	p := NewTwilio(TwilioConfig{AccountSID: "AC1", AuthToken: "t", From: "+15550001111", BaseURL: srv.URL}, srv.Client())
	err := p.Send(context.Background(), "+6281234567890", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twilio 400")
	assert.Contains(t, err.Error(), "invalid To")
}

func TestTwilioSendValidatesInput(t *testing.T) {
	p := NewTwilio(TwilioConfig{}, nil)
	assert.ErrorIs(t, p.Send(context.Background(), "0812", "hi"), ErrInvalidRecipient)
	assert.ErrorIs(t, p.Send(context.Background(), "+6281234567890", " "), ErrEmptyBody)
}
