package discordbot

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/guildhall/internal/domain/notification"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
	"github.com/riskibarqy/guildhall/internal/platform/resilience"
)

const (
	defaultBaseURL = "https://discord.com/api/v10"

	// Discord JSON error code for "Cannot send messages to this user".
	codeCannotMessageUser = 50007
)

var (
	errDiscordTransient = crerr.New("discord transient failure")
	errDirectClosed     = crerr.New("direct messages closed")
)

type ClientConfig struct {
	HTTPClient        *http.Client
	BaseURL           string
	Token             string
	FallbackChannelID string
	// RespondURL, when set, turns invitation messages into accept/decline link buttons.
	RespondURL     string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client delivers notifications through the Discord REST API: a direct message first,
// then a mention in the fallback channel when the caller allows it.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	token             string
	fallbackChannelID string
	respondURL        string
	maxRetries        int
	retryBackoff      time.Duration
	logger            *logging.Logger
	breaker           *resilience.CircuitBreaker
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient:        httpClient,
		baseURL:           baseURL,
		token:             strings.TrimSpace(cfg.Token),
		fallbackChannelID: strings.TrimSpace(cfg.FallbackChannelID),
		respondURL:        strings.TrimRight(strings.TrimSpace(cfg.RespondURL), "/"),
		maxRetries:        max(cfg.MaxRetries, 0),
		retryBackoff:      500 * time.Millisecond,
		logger:            logger.Named("discordbot"),
		breaker:           resilience.NewCircuitBreaker("discord", cfg.CircuitBreaker),
	}
}

func (c *Client) Deliver(ctx context.Context, tenantID, userID string, payload notification.Payload, dc notification.DeliveryContext) (notification.DeliveryReceipt, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return notification.DeliveryReceipt{}, crerr.New("recipient is required")
	}

	directErr := c.sendDirect(ctx, userID, c.buildMessage(payload, ""))
	if directErr == nil {
		return notification.DeliveryReceipt{Delivered: true, Via: notification.ChannelDirect}, nil
	}
	if !dc.AllowFallback || c.fallbackChannelID == "" {
		return notification.DeliveryReceipt{}, directErr
	}

	c.logger.InfoContext(ctx, "direct delivery failed, posting to fallback channel",
		"tenant_id", tenantID,
		"guild_id", dc.GuildID,
		"user_id", userID,
		"kind", payload.Kind,
		"error", directErr,
	)
	if err := c.post(ctx, "/channels/"+url.PathEscape(c.fallbackChannelID)+"/messages", c.buildMessage(payload, userID), nil); err != nil {
		return notification.DeliveryReceipt{}, crerr.CombineErrors(directErr, crerr.Wrap(err, "post to fallback channel"))
	}
	return notification.DeliveryReceipt{Delivered: true, Via: notification.ChannelFallback}, nil
}

func (c *Client) sendDirect(ctx context.Context, userID string, msg message) error {
	var channel struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/users/@me/channels", map[string]string{"recipient_id": userID}, &channel); err != nil {
		return crerr.Wrap(err, "open direct channel")
	}
	if channel.ID == "" {
		return crerr.New("open direct channel: empty channel id")
	}
	if err := c.post(ctx, "/channels/"+url.PathEscape(channel.ID)+"/messages", msg, nil); err != nil {
		return crerr.Wrap(err, "send direct message")
	}
	return nil
}

type message struct {
	Content         string          `json:"content"`
	Embeds          []embed         `json:"embeds,omitempty"`
	Components      []actionRow     `json:"components,omitempty"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type actionRow struct {
	Type       int      `json:"type"`
	Components []button `json:"components"`
}

type button struct {
	Type  int    `json:"type"`
	Style int    `json:"style"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

type allowedMentions struct {
	Users []string `json:"users"`
}

// buildMessage renders a payload. A non-empty mention pings that user, which is how
// fallback-channel posts reach their target.
func (c *Client) buildMessage(payload notification.Payload, mention string) message {
	msg := message{
		Embeds:          []embed{{Title: payload.Title, Description: payload.Body}},
		AllowedMentions: allowedMentions{Users: []string{}},
	}
	if mention != "" {
		msg.Content = "<@" + mention + ">"
		msg.AllowedMentions.Users = []string{mention}
	}

	if payload.InvitationHandle == "" {
		return msg
	}
	if c.respondURL == "" {
		msg.Embeds[0].Description += "\n\nInvitation: `" + payload.InvitationHandle + "`"
		return msg
	}
	handle := url.QueryEscape(payload.InvitationHandle)
	msg.Components = []actionRow{{
		Type: 1,
		Components: []button{
			{Type: 2, Style: 5, Label: "Accept", URL: c.respondURL + "/accept?handle=" + handle},
			{Type: 2, Style: 5, Label: "Decline", URL: c.respondURL + "/decline?handle=" + handle},
		},
	}}
	return msg
}

func (c *Client) post(ctx context.Context, path string, body any, target any) error {
	encoded, err := sonic.Marshal(body)
	if err != nil {
		return crerr.Wrap(err, "encode discord request")
	}

	// Only transient failures count against the breaker.
	var (
		raw      []byte
		rejected error
	)
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.executeRequest(ctx, c.baseURL+path, encoded)
		if callErr != nil && !stderrors.Is(callErr, errDiscordTransient) && ctx.Err() == nil {
			rejected = callErr
			return nil
		}
		return callErr
	})
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "discord circuit breaker rejected request", "state", c.breaker.State())
		return fmt.Errorf("discord is temporarily unavailable: %w", err)
	}
	if err != nil {
		return err
	}
	if rejected != nil {
		return rejected
	}

	if target != nil && len(raw) > 0 {
		if err := sonic.Unmarshal(raw, target); err != nil {
			return crerr.Wrap(err, "decode discord response")
		}
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
		if err != nil {
			return nil, crerr.Wrap(err, "build request")
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errDiscordTransient, redact(err.Error(), c.token))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errDiscordTransient, readErr)
			case resp.StatusCode/100 == 2:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: discord status=%d body=%s", errDiscordTransient, resp.StatusCode, abbreviate(raw))
			case resp.StatusCode == http.StatusForbidden && apiErrorCode(raw) == codeCannotMessageUser:
				return nil, errDirectClosed
			default:
				return nil, crerr.Newf("discord status=%d body=%s", resp.StatusCode, abbreviate(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * c.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func apiErrorCode(raw []byte) int {
	var body struct {
		Code int `json:"code"`
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return 0
	}
	return body.Code
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

func abbreviate(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > 512 {
		return text[:512] + "...(truncated)"
	}
	return text
}

func redact(value, token string) string {
	if token == "" {
		return value
	}
	return strings.ReplaceAll(value, token, "REDACTED")
}
