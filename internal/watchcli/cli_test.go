package watchcli

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// The command set shares package-level flag state, so these tests run
// sequentially and reset the overrides themselves.
func resetFlags() {
	overrideURL = ""
	overrideToken = ""
	outputFormat = "table"
}

func runCommand(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("command %v: %v", args, err)
	}
}

// wsCapture serves a meeting websocket endpoint and records every
// frame a client writes.
type wsCapture struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	frames []string
}

func (c *wsCapture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.mu.Lock()
		c.frames = append(c.frames, string(data))
		c.mu.Unlock()
	}
}

func (c *wsCapture) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func TestStartCommandSerializesFlags(t *testing.T) {
	resetFlags()

	capture := &wsCapture{upgrader: websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}}
	mux := http.NewServeMux()
	mux.Handle("/ws/meetings/", capture)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	runCommand(t, "start", "m1", "--server", ts.URL,
		"--rounds", "2", "--topic", "vaccines", "--locale", "en")

	want := `{"type":"start_round","rounds":2,"topic":"vaccines","locale":"en"}`
	deadline := time.After(2 * time.Second)
	for {
		if frames := capture.recorded(); len(frames) > 0 {
			if frames[0] != want {
				t.Fatalf("frame mismatch:\n got %s\nwant %s", frames[0], want)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("no start_round frame received")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartCommandNormalizesRoundsAndLocale(t *testing.T) {
	resetFlags()

	capture := &wsCapture{upgrader: websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}}
	mux := http.NewServeMux()
	mux.Handle("/ws/meetings/", capture)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	// Zero rounds and an unrecognized locale fall back to defaults.
	runCommand(t, "start", "m1", "--server", ts.URL,
		"--rounds", "0", "--topic", "", "--locale", "fr")

	want := `{"type":"start_round","rounds":1}`
	deadline := time.After(2 * time.Second)
	for {
		if frames := capture.recorded(); len(frames) > 0 {
			if frames[0] != want {
				t.Fatalf("frame mismatch:\n got %s\nwant %s", frames[0], want)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("no start_round frame received")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMeetingsListSendsServerAndTokenOverrides(t *testing.T) {
	resetFlags()

	var mu sync.Mutex
	var gotPath, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		fmt.Fprint(w, `{"meetings":[]}`)
	}))
	defer ts.Close()

	runCommand(t, "meetings", "list", "--server", ts.URL, "--token", "sekrit", "-o", "json")

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/api/meetings" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if gotAuth != "Bearer sekrit" {
		t.Fatalf("token override not sent: %q", gotAuth)
	}
}

func TestStatusCommandRequestsStatusEndpoint(t *testing.T) {
	resetFlags()

	var mu sync.Mutex
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.Path
		mu.Unlock()
		fmt.Fprint(w, `{"meeting_id":"m1","status":"running","current_round":1,"max_rounds":2,"message_count":3,"background_running":true}`)
	}))
	defer ts.Close()

	runCommand(t, "status", "m1", "--server", ts.URL, "-o", "json")

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/api/meetings/m1/status" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
}
