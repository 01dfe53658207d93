package bible

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	c := NewClient(slog.New(slog.DiscardHandler), "user", "pass")
	c.baseURL = baseURL
	return c
}

func TestTokenCache(t *testing.T) {
	now := time.Now()
	var c tokenCache

	if _, ok := c.get(now); ok {
		t.Errorf("empty cache returned a token")
	}

	c.put("tok", now.Add(time.Hour))
	if v, ok := c.get(now); !ok || v != "tok" {
		t.Errorf("get = %q, %v", v, ok)
	}

	// inside the refresh margin the token counts as expired
	if _, ok := c.get(now.Add(time.Hour - 30*time.Second)); ok {
		t.Errorf("token inside the refresh margin must not be served")
	}
	if _, ok := c.get(now.Add(2 * time.Hour)); ok {
		t.Errorf("expired token served")
	}
}

func TestToken_CachedAcrossCalls(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, `{"access_token":"abc123","expires":%d}`, time.Now().Add(time.Hour).Unix())
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tok, err := c.Token(ctx)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		if tok != "abc123" {
			t.Fatalf("token = %q", tok)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hit %d times, want 1", n)
	}
}

func TestToken_MissingCredentials(t *testing.T) {
	c := NewClient(slog.New(slog.DiscardHandler), "", "")
	if _, err := c.Token(context.Background()); err == nil {
		t.Errorf("expected error without credentials")
	}
}

func TestPassage_FallsBackAcrossTranslations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/request_access_token":
			fmt.Fprint(w, `{"access_token":"abc123","expires":0}`)
		case r.URL.Query().Get("version") == "web":
			fmt.Fprint(w, `<div class="passage"><p>For God so loved the world</p></div>`)
		default:
			// requested translation exists but carries no text
			fmt.Fprint(w, ``)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	p, err := c.Passage(context.Background(), "John 3:16", "NIV")
	if err != nil {
		t.Fatalf("passage: %v", err)
	}
	if p.Version != "WEB" {
		t.Errorf("version = %q, want WEB", p.Version)
	}
	if p.Text != "For God so loved the world" {
		t.Errorf("text = %q", p.Text)
	}
	if p.Reference != "John 3:16" || p.Source != "biblegateway" {
		t.Errorf("passage metadata: %+v", p)
	}
}

func TestPassage_NoTranslationHasText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/request_access_token" {
			fmt.Fprint(w, `{"access_token":"abc123","expires":0}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.Passage(context.Background(), "Nowhere 1:1", "niv"); !errors.Is(err, ErrNoPassage) {
		t.Errorf("expected ErrNoPassage, got %v", err)
	}
}

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`<p>In the beginning</p>`, "In the beginning"},
		{`<script>var x = 1;</script>text`, "text"},
		{`<style>.a{color:red}</style>text`, "text"},
		{`a&nbsp;&amp;&nbsp;b`, "a & b"},
		{`&quot;quoted&quot; &#39;word&#39;`, `"quoted" 'word'`},
		{"  lots   of\n\n  space  ", "lots of space"},
		{`<div><span class="v">1</span> Verse text</div>`, "1 Verse text"},
		{``, ""},
	}
	for _, c := range cases {
		if got := StripHTML(c.in); got != c.want {
			t.Errorf("StripHTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
