package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/digihome/digihome-core/internal/infrastructure/config"
)

// fcmScope is the OAuth2 scope required by the FCM HTTP v1 API.
const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// Message is what a Pusher sends to one token.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher sends a message to one device token.
type Pusher interface {
	Push(ctx context.Context, token string, msg Message) error
}

// FCMPusher sends through the Firebase Cloud Messaging HTTP v1 API,
// authenticating with a service account access token.
type FCMPusher struct {
	client *resty.Client
	tokens oauth2.TokenSource
	url    string
}

// NewFCMPusher loads the service account key named by cfg and creates a
// pusher for its project.
func NewFCMPusher(ctx context.Context, cfg config.PushConfig) (*FCMPusher, error) {
	key, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading FCM credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, key, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("parsing FCM credentials: %w", err)
	}

	project := cfg.ProjectID
	if project == "" {
		project = creds.ProjectID
	}
	if project == "" {
		return nil, errors.New("notify: no FCM project id in config or credentials")
	}
	return newFCMPusher(cfg.Endpoint, project, creds.TokenSource, cfg.Timeout), nil
}

func newFCMPusher(endpoint, project string, tokens oauth2.TokenSource, timeout time.Duration) *FCMPusher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, _ error) bool {
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		}).
		SetHeader("Content-Type", "application/json")

	return &FCMPusher{
		client: client,
		tokens: oauth2.ReuseTokenSource(nil, tokens),
		url:    strings.TrimSuffix(endpoint, "/") + "/v1/projects/" + project + "/messages:send",
	}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmResponse struct {
	Name string `json:"name"`
}

type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// code prefers the FCM-specific error code over the generic RPC status.
func (e *fcmErrorResponse) code() string {
	for _, d := range e.Error.Details {
		if d.ErrorCode != "" {
			return d.ErrorCode
		}
	}
	return e.Error.Status
}

// Push sends msg to token. A token FCM reports as unregistered or invalid
// yields ErrTokenRejected.
func (p *FCMPusher) Push(ctx context.Context, token string, msg Message) error {
	access, err := p.tokens.Token()
	if err != nil {
		return fmt.Errorf("fetching FCM access token: %w", err)
	}

	var (
		out    fcmResponse
		failed fcmErrorResponse
	)
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(access.AccessToken).
		SetBody(fcmRequest{Message: fcmMessage{
			Token:        token,
			Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
			Data:         msg.Data,
		}}).
		SetResult(&out).
		SetError(&failed).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("sending push: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	switch code := failed.code(); code {
	case "UNREGISTERED", "INVALID_ARGUMENT", "SENDER_ID_MISMATCH":
		return fmt.Errorf("%w: %s", ErrTokenRejected, code)
	case "":
		return fmt.Errorf("push provider returned %d", resp.StatusCode())
	default:
		return fmt.Errorf("push provider returned %d: %s", resp.StatusCode(), code)
	}
}
