package websocket

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"meme-studio/editor"
)

const roomPrefix = "session:"

type ackInvoker func(err error, payload map[string]any)

// Sessions looks up live editing sessions by id.
type Sessions interface {
	Get(id string) (*editor.Session, bool)
}

// room is one watched session: a single observer fans out to every socket
// in the room.
type room struct {
	members map[socketio.SocketId]struct{}
	cancel  func()
}

// hub tracks which sockets watch which sessions.
type hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func newHub() *hub {
	return &hub{rooms: make(map[string]*room)}
}

// join adds a member to the session's room, subscribing emit when the room
// is new. It returns the member count.
func (h *hub) join(s *editor.Session, member socketio.SocketId, emit func(editor.View)) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[s.ID()]
	if !ok {
		rm = &room{members: make(map[socketio.SocketId]struct{})}
		rm.cancel = s.Subscribe(emit)
		h.rooms[s.ID()] = rm
	}
	rm.members[member] = struct{}{}
	return len(rm.members)
}

// leave removes a member and drops the subscription with the last one.
func (h *hub) leave(sessionID string, member socketio.SocketId) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[sessionID]
	if !ok {
		return 0
	}
	delete(rm.members, member)
	if len(rm.members) == 0 {
		rm.cancel()
		delete(h.rooms, sessionID)
		return 0
	}
	return len(rm.members)
}

// drop forgets a session's room and releases its subscription. It reports
// whether the session was watched.
func (h *hub) drop(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[sessionID]
	if !ok {
		return false
	}
	rm.cancel()
	delete(h.rooms, sessionID)
	return true
}

// active returns the number of watchers per session.
func (h *hub) active() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]int, len(h.rooms))
	for id, rm := range h.rooms {
		out[id] = len(rm.members)
	}
	return out
}

// Server is the Socket.IO endpoint that streams session snapshots to
// viewers.
type Server struct {
	*socketio.Server
	hub *hub
}

// ActiveSessions returns the number of watchers per session.
func (s *Server) ActiveSessions() map[string]int {
	return s.hub.active()
}

// CloseSession tells the watchers of a removed session that it is gone and
// releases its subscription.
func (s *Server) CloseSession(sessionID string) {
	if !s.hub.drop(sessionID) {
		return
	}
	rm := socketio.Room(roomPrefix + sessionID)
	_ = s.To(rm).Emit("session-closed", map[string]any{"sessionId": sessionID})
	logrus.WithField("session_id", sessionID).Info("Closed watched session")
}

// SetupSocketIO wires the live view events. A client emits "join-session"
// with a session id and receives the current view in the ack, then a
// "session-snapshot" event for every change.
func SetupSocketIO(sessions Sessions) *Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	srv := &Server{Server: socketio.NewServer(nil, opts), hub: newHub()}

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		me := socket.Id()
		logrus.WithField("socket_id", me).Debug("Socket connected")

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("join-session", func(datas ...any) {
			ack, args := extractAck(datas)
			sessionID, err := sessionArg(args)
			if err != nil {
				respondWithAck(socket, ack, "join-session-ack", errorPayload(err), err)
				return
			}
			session, ok := sessions.Get(sessionID)
			if !ok {
				err := fmt.Errorf("session %s not found", sessionID)
				respondWithAck(socket, ack, "join-session-ack", errorPayload(err), err)
				return
			}

			rm := socketio.Room(roomPrefix + sessionID)
			socket.Join(rm)
			watchers := srv.hub.join(session, me, func(v editor.View) {
				_ = srv.To(rm).Emit("session-snapshot", v)
			})
			logrus.WithFields(logrus.Fields{
				"socket_id":  me,
				"session_id": sessionID,
				"watchers":   watchers,
			}).Info("Socket joined session")

			respondWithAck(socket, ack, "join-session-ack", map[string]any{
				"status":   "ok",
				"watchers": watchers,
				"view":     session.View(),
			}, nil)
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("leave-session", func(datas ...any) {
			ack, args := extractAck(datas)
			sessionID, err := sessionArg(args)
			if err != nil {
				respondWithAck(socket, ack, "leave-session-ack", errorPayload(err), err)
				return
			}
			socket.Leave(socketio.Room(roomPrefix + sessionID))
			watchers := srv.hub.leave(sessionID, me)
			respondWithAck(socket, ack, "leave-session-ack", map[string]any{
				"status":   "ok",
				"watchers": watchers,
			}, nil)
		})

		socket.On("disconnecting", func(datas ...any) {
			for _, current := range socket.Rooms().Keys() {
				sessionID, ok := strings.CutPrefix(string(current), roomPrefix)
				if !ok {
					continue
				}
				watchers := srv.hub.leave(sessionID, me)
				logrus.WithFields(logrus.Fields{
					"socket_id":  me,
					"session_id": sessionID,
					"watchers":   watchers,
				}).Debug("Socket left session")
			}
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv
}

func sessionArg(args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("session id is required")
	}
	id, ok := args[0].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid session id")
	}
	return id, nil
}

func errorPayload(err error) map[string]any {
	return map[string]any{"status": "error", "error": err.Error()}
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts the callback shapes Socket.IO hands to event listeners.
// The payload carries the error message, so variadic callbacks only get the
// payload.
func wrapAck(candidate any) ackInvoker {
	switch fn := candidate.(type) {
	case func(...any):
		return func(_ error, payload map[string]any) { fn(payload) }
	case func([]any, error):
		return func(err error, payload map[string]any) { fn([]any{payload}, err) }
	}
	return nil
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
		return
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
