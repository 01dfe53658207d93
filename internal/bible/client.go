// Package bible is a thin proxy in front of the BibleGateway API: token
// caching, passage fetching with translation fallbacks, and HTML-to-text
// stripping. It is a collaborator of the consistency engine, not part of
// it, and is specified only at this interface.
package bible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.biblegateway.com/v2"

var ErrNoPassage = errors.New("bible: no passage available for requested translation")

type Client struct {
	log     *slog.Logger
	http    *http.Client
	limiter *rate.Limiter
	user    string
	pass    string
	baseURL string
	cache   tokenCache
}

func NewClient(log *slog.Logger, user, pass string) *Client {
	return &Client{
		log:     log,
		http:    newHTTPClient(),
		limiter: rate.NewLimiter(rate.Limit(10), 5),
		user:    user,
		pass:    pass,
		baseURL: defaultBaseURL,
	}
}

// newHTTPClient returns a client with pooling and timeouts tuned for a
// single upstream host.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// Token returns a valid access token, refreshing through the cache with
// a safety margin before expiry.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.user == "" || c.pass == "" {
		return "", errors.New("bible: credentials not configured")
	}

	now := time.Now()
	if tok, ok := c.cache.get(now); ok {
		return tok, nil
	}

	u := fmt.Sprintf("%s/request_access_token?username=%s&password=%s",
		c.baseURL, url.QueryEscape(c.user), url.QueryEscape(c.pass))
	body, err := c.get(ctx, u)
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}

	var parsed struct {
		AccessToken string          `json:"access_token"`
		Expires     json.RawMessage `json:"expires"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", errors.New("bible: no access_token in response")
	}

	expiresAt := now.Add(time.Hour)
	var epoch float64
	if err := json.Unmarshal(parsed.Expires, &epoch); err == nil && epoch > 0 {
		expiresAt = time.Unix(int64(epoch), 0)
	}

	c.cache.put(parsed.AccessToken, expiresAt)
	c.log.Debug("bible_token_refreshed", "expires_at", expiresAt)
	return parsed.AccessToken, nil
}

// Translations forwards the upstream translation list verbatim.
func (c *Client) Translations(ctx context.Context) ([]byte, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, fmt.Sprintf("%s/bible?access_token=%s", c.baseURL, url.QueryEscape(tok)))
}

type Passage struct {
	Reference string `json:"reference"`
	Version   string `json:"version"`
	HTML      string `json:"html"`
	Text      string `json:"text"`
	Source    string `json:"source"`
}

// Passage fetches a passage, trying the requested version lowercase then
// as given, then open fallback translations.
func (c *Client) Passage(ctx context.Context, ref, version string) (Passage, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return Passage{}, err
	}

	tried := map[string]bool{}
	attempts := []string{strings.ToLower(version), version, "web", "bsb"}
	for _, abbr := range attempts {
		if abbr == "" || tried[abbr] {
			continue
		}
		tried[abbr] = true

		u := fmt.Sprintf("%s/passage?search=%s&version=%s&access_token=%s",
			c.baseURL, url.QueryEscape(ref), url.QueryEscape(abbr), url.QueryEscape(tok))
		body, err := c.get(ctx, u)
		if err != nil {
			continue
		}
		text := StripHTML(string(body))
		if text == "" {
			continue
		}
		return Passage{
			Reference: ref,
			Version:   strings.ToUpper(abbr),
			HTML:      string(body),
			Text:      text,
			Source:    "biblegateway",
		}, nil
	}
	return Passage{}, ErrNoPassage
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

var (
	reScripts  = regexp.MustCompile(`(?is)<script.*?</script>`)
	reStyles   = regexp.MustCompile(`(?is)<style.*?</style>`)
	reTags     = regexp.MustCompile(`<[^>]+>`)
	reSpaceRun = regexp.MustCompile(`\s{2,}`)
)

var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#39;", "'",
	"&quot;", `"`,
)

// StripHTML reduces passage markup to plain text.
func StripHTML(html string) string {
	s := reScripts.ReplaceAllString(html, "")
	s = reStyles.ReplaceAllString(s, "")
	s = reTags.ReplaceAllString(s, " ")
	s = entities.Replace(s)
	s = reSpaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
