package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/menu-bot/pkg/ratelimit"
)

const testToken = "123:TEST"

type apiCall struct {
	Method string
	Form   url.Values
}

// fakeBotAPI is an httptest stand-in for the Bot API.
type fakeBotAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	calls    []apiCall
	failNext map[string]string
	updates  []string
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{failNext: map[string]string{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBotAPI) endpoint() string {
	return f.server.URL + "/bot%s/%s"
}

func (f *fakeBotAPI) handle(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + testToken + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)
	_ = r.ParseForm()

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Form: r.PostForm})
	failure, failing := f.failNext[method]
	delete(f.failNext, method)
	var update string
	if method == "getUpdates" && len(f.updates) > 0 {
		update, f.updates = f.updates[0], f.updates[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		_, _ = w.Write([]byte(failure))
		return
	}

	switch method {
	case "getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Menu","username":"menu_bot"}}`))
	case "sendMessage", "sendPhoto":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	case "getUpdates":
		if update == "" {
			time.Sleep(10 * time.Millisecond)
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":[%s]}`, update)
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (f *fakeBotAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestBot(t *testing.T, api *fakeBotAPI) *Bot {
	t.Helper()
	bot, err := New(Config{Token: testToken, APIEndpoint: api.endpoint()})
	require.NoError(t, err)
	return bot
}

func newTestTracker() (*ratelimit.Tracker, *[]time.Duration) {
	waits := &[]time.Duration{}
	tracker := ratelimit.NewTracker(0, 1, zerolog.Nop())
	tracker.SetSleep(func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	})
	return tracker, waits
}

func TestNew(t *testing.T) {
	api := newFakeBotAPI(t)
	bot := newTestBot(t, api)

	require.Equal(t, "menu_bot", bot.Username())
	require.Len(t, api.callsTo("getMe"), 1)
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNew_BadToken(t *testing.T) {
	api := newFakeBotAPI(t)
	_, err := New(Config{Token: "wrong", APIEndpoint: api.endpoint()})
	require.Error(t, err)
}
