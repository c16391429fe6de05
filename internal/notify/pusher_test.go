package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/digihome/digihome-core/internal/infrastructure/config"
)

func testPusher(url string) *FCMPusher {
	p := newFCMPusher(url, "digihome-test", oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29.test"}), time.Second)
	p.client.SetRetryCount(0)
	return p
}

func TestFCMPusher_Push(t *testing.T) {
	var got fcmRequest
	var auth, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"projects/digihome-test/messages/0:1"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := testPusher(srv.URL + "/")
	err := p.Push(context.Background(), "tok-1", Message{Title: "Hi", Body: "There", Data: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if path != "/v1/projects/digihome-test/messages:send" {
		t.Errorf("path = %q, want the v1 messages:send path", path)
	}
	if auth != "Bearer ya29.test" {
		t.Errorf("Authorization = %q, want Bearer ya29.test", auth)
	}
	m := got.Message
	if m.Token != "tok-1" || m.Notification.Title != "Hi" || m.Data["k"] != "v" {
		t.Errorf("request = %+v", got)
	}
}

// fcmError renders an FCM v1 error body. An empty errorCode omits details.
func fcmError(status int, rpcStatus, errorCode string) string {
	details := ""
	if errorCode != "" {
		details = fmt.Sprintf(`,"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":%q}]`, errorCode)
	}
	return fmt.Sprintf(`{"error":{"code":%d,"message":"x","status":%q%s}}`, status, rpcStatus, details)
}

func TestFCMPusher_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantRejected bool
	}{
		{"unregistered token", 404, fcmError(404, "NOT_FOUND", "UNREGISTERED"), true},
		{"malformed token", 400, fcmError(400, "INVALID_ARGUMENT", ""), true},
		{"invalid argument detail", 400, fcmError(400, "INVALID_ARGUMENT", "INVALID_ARGUMENT"), true},
		{"sender mismatch", 403, fcmError(403, "PERMISSION_DENIED", "SENDER_ID_MISMATCH"), true},
		{"quota exceeded", 429, fcmError(429, "RESOURCE_EXHAUSTED", "QUOTA_EXCEEDED"), false},
		{"unavailable", 503, fcmError(503, "UNAVAILABLE", "UNAVAILABLE"), false},
		{"unauthorized", 401, `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer srv.Close()

			err := testPusher(srv.URL).Push(context.Background(), "tok", Message{})
			if err == nil {
				t.Fatal("Push() error = nil")
			}
			if errors.Is(err, ErrTokenRejected) != tt.wantRejected {
				t.Errorf("Push() error = %v, rejected = %v, want %v", err, errors.Is(err, ErrTokenRejected), tt.wantRejected)
			}
		})
	}
}

func TestFCMPusher_RetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(fcmError(503, "UNAVAILABLE", "UNAVAILABLE"))) //nolint:errcheck
			return
		}
		w.Write([]byte(`{"name":"projects/digihome-test/messages/0:2"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := testPusher(srv.URL)
	p.client.SetRetryCount(1).SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(time.Millisecond)

	if err := p.Push(context.Background(), "tok", Message{}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestNewFCMPusher_Credentials(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFCMPusher(context.Background(), config.PushConfig{CredentialsFile: filepath.Join(dir, "none.json")})
		if err == nil {
			t.Error("NewFCMPusher() error = nil, want missing file error")
		}
	})

	t.Run("not a key", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := NewFCMPusher(context.Background(), config.PushConfig{CredentialsFile: path})
		if err == nil {
			t.Error("NewFCMPusher() error = nil, want parse error")
		}
	})
}

func TestNewFCMPusher_ProjectID(t *testing.T) {
	writeKey := func(t *testing.T, project string) string {
		t.Helper()
		key := map[string]string{
			"type":         "service_account",
			"project_id":   project,
			"client_email": "push@digihome-test.iam.gserviceaccount.com",
			"private_key":  "unused",
			"token_uri":    "https://oauth2.googleapis.com/token",
		}
		data, err := json.Marshal(key)
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(t.TempDir(), "key.json")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name       string
		keyProject string
		cfgProject string
		want       string
		wantErr    bool
	}{
		{name: "from credentials", keyProject: "from-key", want: "/v1/projects/from-key/messages:send"},
		{name: "config overrides", keyProject: "from-key", cfgProject: "from-config", want: "/v1/projects/from-config/messages:send"},
		{name: "none", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewFCMPusher(context.Background(), config.PushConfig{
				Endpoint:        "https://fcm.googleapis.com",
				ProjectID:       tt.cfgProject,
				CredentialsFile: writeKey(t, tt.keyProject),
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFCMPusher() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.url != "https://fcm.googleapis.com"+tt.want {
				t.Errorf("url = %q, want suffix %q", p.url, tt.want)
			}
		})
	}
}

func TestFCMPusher_URL(t *testing.T) {
	p := testPusher("https://fcm.googleapis.com")
	if !strings.HasSuffix(p.url, "/v1/projects/digihome-test/messages:send") || strings.Contains(p.url, "//v1") {
		t.Errorf("url = %q", p.url)
	}
}
