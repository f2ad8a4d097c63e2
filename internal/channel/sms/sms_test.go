package sms

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/edgard/expensebot/internal/channel"
	"github.com/edgard/expensebot/internal/config"
	"github.com/edgard/expensebot/internal/logger"
)

const (
	authToken  = "secret-token"
	webhookURL = "https://bot.example.com/sms/webhook"
)

type fakeAPI struct {
	mu     sync.Mutex
	params []*openapi.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func newTestChannel(validate bool) (*Channel, *fakeAPI) {
	api := &fakeAPI{}
	return &Channel{
		api:       api,
		from:      "+15550000000",
		validator: client.NewRequestValidator(authToken),
		publicURL: webhookURL,
		validate:  validate,
		log:       logger.Discard(),
	}, api
}

// sign computes the X-Twilio-Signature for a form post.
func sign(rawURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(rawURL)
	for _, k := range keys {
		sb.WriteString(k + form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(sb.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookRequest(form url.Values, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	return req
}

// startRun runs the channel with h and returns a stop func that cancels and
// waits for Run to return.
func startRun(t *testing.T, c *Channel, h channel.Handler) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx, h)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		ready := c.handler != nil
		c.mu.Unlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("channel did not start")
		}
		time.Sleep(time.Millisecond)
	}

	return func() {
		cancel()
		<-done
	}
}

func TestNewValidatesCredentials(t *testing.T) {
	t.Parallel()
	if _, err := New(config.SMSConfig{AccountSID: "AC1"}, nil); err == nil {
		t.Error("New() expected error for missing credentials")
	}
	c, err := New(config.SMSConfig{AccountSID: "AC1", AuthToken: "t", FromNumber: "+1555"}, logger.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Name() != "sms" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestSendText(t *testing.T) {
	t.Parallel()
	c, api := newTestChannel(false)

	if err := c.SendText(context.Background(), "+15551234567", "Got it!"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if len(api.params) != 1 {
		t.Fatalf("sent %d messages, want 1", len(api.params))
	}
	p := api.params[0]
	if *p.To != "+15551234567" || *p.From != "+15550000000" || *p.Body != "Got it!" {
		t.Errorf("params = to %s from %s body %q", *p.To, *p.From, *p.Body)
	}

	api.err = errors.New("21211 invalid number")
	if err := c.SendText(context.Background(), "bad", "x"); err == nil {
		t.Error("SendText() expected error")
	}
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	form := url.Values{"From": {"+15551234567"}, "Body": {"12.50 lunch"}, "MessageSid": {"SM1"}}

	testCases := []struct {
		name       string
		validate   bool
		method     string
		signature  string
		form       url.Values
		wantStatus int
		wantTurn   bool
	}{
		{name: "valid signature", validate: true, method: http.MethodPost, signature: sign(webhookURL, form), form: form, wantStatus: http.StatusOK, wantTurn: true},
		{name: "bad signature", validate: true, method: http.MethodPost, signature: "bogus", form: form, wantStatus: http.StatusForbidden},
		{name: "missing signature", validate: true, method: http.MethodPost, form: form, wantStatus: http.StatusForbidden},
		{name: "validation disabled", validate: false, method: http.MethodPost, form: form, wantStatus: http.StatusOK, wantTurn: true},
		{name: "missing sender", validate: false, method: http.MethodPost, form: url.Values{"Body": {"hi"}}, wantStatus: http.StatusBadRequest},
		{name: "wrong method", validate: false, method: http.MethodGet, form: form, wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newTestChannel(tc.validate)

			turns := make(chan channel.InboundMessage, 1)
			stop := startRun(t, c, channel.HandlerFunc(func(_ context.Context, _ channel.Sender, msg channel.InboundMessage) {
				turns <- msg
			}))
			defer stop()

			req := webhookRequest(tc.form, tc.signature)
			req.Method = tc.method
			rec := httptest.NewRecorder()
			c.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if !tc.wantTurn {
				return
			}
			if !strings.Contains(rec.Body.String(), "<Response></Response>") {
				t.Errorf("body = %q, want empty TwiML", rec.Body.String())
			}
			select {
			case msg := <-turns:
				want := channel.InboundMessage{PlatformUserID: "+15551234567", DisplayName: "+15551234567", Text: "12.50 lunch", ConversationID: "+15551234567"}
				if msg != want {
					t.Errorf("turn message = %+v, want %+v", msg, want)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("handler was not invoked")
			}
		})
	}
}

func TestWebhookBeforeRun(t *testing.T) {
	t.Parallel()
	c, _ := newTestChannel(false)

	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, webhookRequest(url.Values{"From": {"+1"}, "Body": {"hi"}}, ""))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRunWaitsForInFlightTurns(t *testing.T) {
	t.Parallel()
	c, _ := newTestChannel(false)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished bool
	var mu sync.Mutex

	stop := startRun(t, c, channel.HandlerFunc(func(ctx context.Context, _ channel.Sender, _ channel.InboundMessage) {
		close(started)
		<-release
		if ctx.Err() != nil {
			t.Error("turn context was cancelled by shutdown")
		}
		mu.Lock()
		finished = true
		mu.Unlock()
	}))

	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, webhookRequest(url.Values{"From": {"+1"}, "Body": {"hi"}}, ""))
	<-started

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Run returned before the in-flight turn finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopped

	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Error("turn did not finish")
	}

	rec = httptest.NewRecorder()
	c.ServeHTTP(rec, webhookRequest(url.Values{"From": {"+1"}, "Body": {"late"}}, ""))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after shutdown = %d, want 503", rec.Code)
	}
}
