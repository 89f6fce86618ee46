// internal/notify/twilio_test.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/twiliot/internal/config"
	"github.com/signalnine/twiliot/internal/protocol"
)

const createdMessage = `{
	"account_sid": "AC123",
	"api_version": "2010-04-01",
	"body": "hello",
	"date_created": "Thu, 30 Jul 2015 20:12:31 +0000",
	"date_sent": null,
	"date_updated": "Thu, 30 Jul 2015 20:12:33 +0000",
	"direction": "outbound-api",
	"error_code": null,
	"error_message": null,
	"from": "+15550001111",
	"messaging_service_sid": null,
	"num_media": "0",
	"num_segments": "1",
	"price": null,
	"price_unit": "USD",
	"sid": "SM0001",
	"status": "queued",
	"subresource_uris": {"media": "/2010-04-01/Accounts/AC123/Messages/SM0001/Media.json"},
	"to": "+15551234567",
	"uri": "/2010-04-01/Accounts/AC123/Messages/SM0001.json"
}`

func fakeTwilio(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550001111", r.PostForm.Get("From"))
		assert.Equal(t, "+15551234567", r.PostForm.Get("To"))
		assert.NotEmpty(t, r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func newTestNotifier(t *testing.T, url string, buf *bytes.Buffer) *Notifier {
	t.Helper()
	n, err := New(config.MessagingConfig{
		SID:    "AC123",
		Auth:   "secret",
		Number: "+15550001111",
		URL:    url,
	}, zerolog.New(buf))
	require.NoError(t, err)
	return n
}

func TestNewMissingKeys(t *testing.T) {
	_, err := New(config.MessagingConfig{SID: "AC123"}, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
	assert.Contains(t, err.Error(), "auth, number")
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[messaging]
sid = "AC123"
auth = "secret"
number = "+15550001111"
`), 0644))

	n, err := NewFromFile(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", n.from)

	_, err = NewFromFile(filepath.Join(t.TempDir(), "missing.toml"), zerolog.Nop())
	assert.True(t, config.IsConfigError(err))
}

func TestSMSSuccess(t *testing.T) {
	var hits int32
	srv := fakeTwilio(t, http.StatusCreated, createdMessage, &hits)
	defer srv.Close()

	var buf bytes.Buffer
	out := filepath.Join(t.TempDir(), "sms.json")

	result, err := newTestNotifier(t, srv.URL, &buf).SMS(context.Background(), "hello", "+15551234567", out)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "SM0001", result.SID)
	assert.Equal(t, "queued", result.Status)
	require.NotNil(t, result.DateCreated)
	assert.Equal(t, "2015-07-30T20:12:31Z", *result.DateCreated)
	require.NotNil(t, result.DateUpdated)
	assert.Equal(t, "2015-07-30T20:12:33Z", *result.DateUpdated)
	assert.Nil(t, result.DateSent)
	assert.Nil(t, result.ErrorCode)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var written map[string]any
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, "SM0001", written["sid"])
	assert.Equal(t, "2015-07-30T20:12:31Z", written["date_created"])
	assert.Nil(t, written["date_sent"])
	assert.NotContains(t, written, "subresource_uris")

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSMSMissingArgumentsSkipsProvider(t *testing.T) {
	var hits int32
	srv := fakeTwilio(t, http.StatusCreated, createdMessage, &hits)
	defer srv.Close()

	var buf bytes.Buffer
	n := newTestNotifier(t, srv.URL, &buf)

	result, err := n.SMS(context.Background(), "", "+15551234567", "")
	assert.NoError(t, err)
	assert.Nil(t, result)

	result, err = n.SMS(context.Background(), "hello", "", "")
	assert.NoError(t, err)
	assert.Nil(t, result)

	assert.Zero(t, atomic.LoadInt32(&hits))
	assert.Contains(t, buf.String(), "destination phone number")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestSMSProviderErrorIsAbsorbed(t *testing.T) {
	var hits int32
	srv := fakeTwilio(t, http.StatusBadRequest,
		`{"code": 21211, "message": "The 'To' number is not a valid phone number.", "more_info": "https://www.twilio.com/docs/errors/21211", "status": 400}`,
		&hits)
	defer srv.Close()

	var buf bytes.Buffer
	result, err := newTestNotifier(t, srv.URL, &buf).SMS(context.Background(), "hello", "+15551234567", "")
	assert.NoError(t, err)
	assert.Nil(t, result)

	logs := buf.String()
	assert.Contains(t, logs, "failed to send SMS")
	assert.Contains(t, logs, "21211")
}

func TestSMSTransportErrorIsAbsorbed(t *testing.T) {
	var buf bytes.Buffer
	n := newTestNotifier(t, "http://127.0.0.1:59997", &buf)

	result, err := n.SMS(context.Background(), "hello", "+15551234567", "")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Contains(t, buf.String(), "failed to send SMS")
}

func TestSMSMalformedResponse(t *testing.T) {
	for _, body := range []string{`[]`, `not json`, `{"status": "queued"}`} {
		var hits int32
		srv := fakeTwilio(t, http.StatusCreated, body, &hits)

		var buf bytes.Buffer
		_, err := newTestNotifier(t, srv.URL, &buf).SMS(context.Background(), "hello", "+15551234567", "")

		var ve *protocol.ValidationError
		assert.True(t, errors.As(err, &ve), "body %q: err = %v", body, err)
		srv.Close()
	}
}

func TestProviderErrorMessage(t *testing.T) {
	assert.Equal(t, "provider returned 401: code 20003: Authenticate",
		(&ProviderError{Status: 401, Code: 20003, Message: "Authenticate"}).Error())
	assert.Equal(t, "provider returned 502: bad gateway",
		(&ProviderError{Status: 502, Message: "bad gateway"}).Error())
}

func TestNormalizeDate(t *testing.T) {
	s := func(v string) *string { return &v }

	assert.Nil(t, normalizeDate(nil))
	assert.Nil(t, normalizeDate(s("")))
	assert.Nil(t, normalizeDate(s("not a date")))
	assert.Equal(t, "2015-07-30T20:12:31Z", *normalizeDate(s("Thu, 30 Jul 2015 20:12:31 +0000")))
	assert.Equal(t, "2015-07-30T22:12:31+02:00", *normalizeDate(s("Thu, 30 Jul 2015 22:12:31 +0200")))
	assert.Equal(t, "2015-07-30T20:12:31Z", *normalizeDate(s("2015-07-30T20:12:31Z")))
}
