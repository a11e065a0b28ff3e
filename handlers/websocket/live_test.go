package websocket

import (
	"errors"
	"image"
	"sync"
	"testing"

	socketio "github.com/zishang520/socket.io/v2/socket"

	"meme-studio/editor"
)

type viewLog struct {
	mu    sync.Mutex
	views []editor.View
}

func (l *viewLog) add(v editor.View) {
	l.mu.Lock()
	l.views = append(l.views, v)
	l.mu.Unlock()
}

func (l *viewLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.views)
}

func loadedSession(id string) *editor.Session {
	s := editor.NewSession(id)
	s.LoadImage(image.NewRGBA(image.Rect(0, 0, 40, 30)), "test.png")
	return s
}

func TestHub_OneSubscriptionPerSession(t *testing.T) {
	h := newHub()
	s := loadedSession("s1")
	log := &viewLog{}

	if n := h.join(s, socketio.SocketId("a"), log.add); n != 1 {
		t.Fatalf("first join: %d watchers", n)
	}
	if n := h.join(s, socketio.SocketId("b"), log.add); n != 2 {
		t.Fatalf("second join: %d watchers", n)
	}

	if _, err := s.AddTextLayer("hi"); err != nil {
		t.Fatal(err)
	}
	if got := log.len(); got != 1 {
		t.Errorf("expected one snapshot per change, got %d", got)
	}
	if got := h.active()["s1"]; got != 2 {
		t.Errorf("active watchers = %d", got)
	}
}

func TestHub_LastLeaveUnsubscribes(t *testing.T) {
	h := newHub()
	s := loadedSession("s2")
	log := &viewLog{}

	h.join(s, socketio.SocketId("a"), log.add)
	h.join(s, socketio.SocketId("b"), log.add)
	if n := h.leave("s2", socketio.SocketId("a")); n != 1 {
		t.Errorf("after first leave: %d watchers", n)
	}
	s.AddTextLayer("")
	if log.len() != 1 {
		t.Fatalf("remaining watcher should still receive snapshots, got %d", log.len())
	}

	if n := h.leave("s2", socketio.SocketId("b")); n != 0 {
		t.Errorf("after last leave: %d watchers", n)
	}
	s.AddTextLayer("")
	if log.len() != 1 {
		t.Errorf("snapshot delivered after everyone left")
	}
	if _, ok := h.active()["s2"]; ok {
		t.Error("room should be gone")
	}
	if n := h.leave("unknown", socketio.SocketId("a")); n != 0 {
		t.Errorf("leaving unknown room: %d", n)
	}
}

func TestSessionArg(t *testing.T) {
	testCases := []struct {
		name    string
		args    []any
		want    string
		wantErr bool
	}{
		{"valid", []any{"abc"}, "abc", false},
		{"missing", nil, "", true},
		{"empty", []any{""}, "", true},
		{"wrong type", []any{42}, "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sessionArg(tc.args)
			if (err != nil) != tc.wantErr || got != tc.want {
				t.Errorf("sessionArg(%v) = %q, %v", tc.args, got, err)
			}
		})
	}
}

func TestExtractAck_Shapes(t *testing.T) {
	t.Run("no ack", func(t *testing.T) {
		ack, args := extractAck([]any{"room"})
		if ack != nil || len(args) != 1 {
			t.Errorf("ack=%v args=%v", ack != nil, args)
		}
	})

	t.Run("slice and error", func(t *testing.T) {
		var gotArgs []any
		var gotErr error
		ack, args := extractAck([]any{"room", func(a []any, err error) { gotArgs, gotErr = a, err }})
		if ack == nil || len(args) != 1 {
			t.Fatal("ack not detected")
		}
		ack(nil, map[string]any{"status": "ok"})
		if gotErr != nil || len(gotArgs) != 1 {
			t.Fatalf("got %v, %v", gotArgs, gotErr)
		}
		if m, ok := gotArgs[0].(map[string]any); !ok || m["status"] != "ok" {
			t.Errorf("payload = %v", gotArgs[0])
		}
	})

	t.Run("variadic", func(t *testing.T) {
		var got []any
		ack, _ := extractAck([]any{func(a ...any) { got = a }})
		ack(errors.New("boom"), errorPayload(errors.New("boom")))
		if len(got) != 1 {
			t.Fatalf("got %v", got)
		}
		if m, ok := got[0].(map[string]any); !ok || m["status"] != "error" || m["error"] != "boom" {
			t.Errorf("payload = %v", got[0])
		}
	})

	t.Run("other callbacks are arguments", func(t *testing.T) {
		ack, args := extractAck([]any{"room", func(string) {}})
		if ack != nil || len(args) != 2 {
			t.Errorf("ack=%v args=%v", ack != nil, args)
		}
	})
}

func TestHub_DropReleasesSubscription(t *testing.T) {
	h := newHub()
	s := loadedSession("s3")
	log := &viewLog{}

	h.join(s, socketio.SocketId("a"), log.add)
	h.join(s, socketio.SocketId("b"), log.add)
	if !h.drop("s3") {
		t.Fatal("drop() = false for a watched session")
	}
	s.AddTextLayer("")
	if log.len() != 0 {
		t.Errorf("snapshot delivered after the session was dropped")
	}
	if _, ok := h.active()["s3"]; ok {
		t.Error("room should be gone")
	}
	if h.drop("s3") {
		t.Error("second drop() = true")
	}
	if n := h.leave("s3", socketio.SocketId("a")); n != 0 {
		t.Errorf("leave after drop: %d watchers", n)
	}
}

func TestServer_CloseSession(t *testing.T) {
	srv := SetupSocketIO(nil)
	defer srv.Close(nil)

	s := loadedSession("s4")
	log := &viewLog{}
	srv.hub.join(s, socketio.SocketId("a"), log.add)

	srv.CloseSession("s4")
	srv.CloseSession("never-watched")

	if n := len(srv.ActiveSessions()); n != 0 {
		t.Errorf("active sessions = %d", n)
	}
	s.AddTextLayer("")
	if log.len() != 0 {
		t.Error("snapshot delivered after the session was closed")
	}
}
