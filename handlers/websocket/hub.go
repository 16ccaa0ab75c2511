package websocket

import (
	"blueprints-server/core"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const (
	roomPrefix = "blueprints/"

	EventJoin    = "join-blueprint"
	EventLeave   = "leave-blueprint"
	EventUpdated = "blueprint-updated"
)

type ackInvoker func(err error, payload map[string]any)

// Hub lets socket.io clients watch single blueprints. Each watched
// blueprint is a room; BlueprintUpdated pushes the new state to it.
type Hub struct {
	srv *socketio.Server

	mu       sync.RWMutex
	watchers map[string]int
}

func NewHub() *Hub {
	h := &Hub{watchers: make(map[string]int)}
	h.srv = h.setupSocketIO()
	return h
}

// Server returns the socket.io server to mount under /socket.io/.
func (h *Hub) Server() *socketio.Server {
	return h.srv
}

func (h *Hub) Close() {
	h.srv.Close(nil)
}

// ActiveRooms maps each watched room to its number of watchers.
func (h *Hub) ActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make(map[string]int, len(h.watchers))
	for k, v := range h.watchers {
		rooms[k] = v
	}
	return rooms
}

func (h *Hub) setWatchers(room string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 {
		delete(h.watchers, room)
		return
	}
	h.watchers[room] = n
}

// BlueprintUpdated emits the blueprint to everybody watching it.
func (h *Hub) BlueprintUpdated(bp core.Blueprint) {
	room := RoomName(bp.Author, bp.Name)
	payload := updatePayload(bp)
	if err := h.srv.To(socketio.Room(room)).Emit(EventUpdated, payload); err != nil {
		logrus.WithError(err).WithField("room", room).Warn("Failed to publish blueprint update")
		return
	}
	logrus.WithFields(logrus.Fields{
		"room":    room,
		"eventId": payload["eventId"],
	}).Debug("Blueprint update published")
}

// RoomName is the socket.io room of one blueprint. Both parts are escaped
// so a slash inside an author or name cannot collide with the separator.
func RoomName(author, name string) string {
	return roomPrefix + url.PathEscape(author) + "/" + url.PathEscape(name)
}

func updatePayload(bp core.Blueprint) map[string]any {
	return map[string]any{
		"eventId":   ulid.Make().String(),
		"blueprint": bp.Clone(),
	}
}

func (h *Hub) setupSocketIO() *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin:      []any{localhostOrigin},
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		me := socket.Id()

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventJoin, func(datas ...any) {
			ack, args := extractAck(datas)
			key, err := parseKeyArgs(args)
			if err != nil {
				respondWithAck(socket, ack, "join-blueprint-ack", errorPayload(err), err)
				return
			}

			room := RoomName(key.Author, key.Name)
			socket.Join(socketio.Room(room))
			utils.Log().Printf("Socket %v watches %v\n", me, room)

			srv.In(socketio.Room(room)).FetchSockets()(func(users []*socketio.RemoteSocket, fetchErr error) {
				if fetchErr != nil {
					respondWithAck(socket, ack, "join-blueprint-ack", errorPayload(fetchErr), fetchErr)
					return
				}
				h.setWatchers(room, len(users))
				respondWithAck(socket, ack, "join-blueprint-ack", map[string]any{
					"status":   "ok",
					"room":     room,
					"watchers": len(users),
				}, nil)
			})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(EventLeave, func(datas ...any) {
			ack, args := extractAck(datas)
			key, err := parseKeyArgs(args)
			if err != nil {
				respondWithAck(socket, ack, "leave-blueprint-ack", errorPayload(err), err)
				return
			}

			room := RoomName(key.Author, key.Name)
			socket.Leave(socketio.Room(room))
			h.recount(srv, socketio.Room(room), "")
			respondWithAck(socket, ack, "leave-blueprint-ack", map[string]any{
				"status": "ok",
				"room":   room,
			}, nil)
		})

		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				if !strings.HasPrefix(string(currentRoom), roomPrefix) {
					continue
				}
				utils.Log().Printf("disconnecting %v from room %v\n", me, currentRoom)
				h.recount(srv, currentRoom, me)
			}
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv
}

// recount refreshes the watcher count of room, ignoring the leaving socket.
func (h *Hub) recount(srv *socketio.Server, room socketio.Room, leaving socketio.SocketId) {
	srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, _ error) {
		n := 0
		for _, user := range users {
			if user.Id() != leaving {
				n++
			}
		}
		h.setWatchers(string(room), n)
	})
}

func parseKeyArgs(args []any) (core.Key, error) {
	if len(args) < 2 {
		return core.Key{}, fmt.Errorf("author and name are required")
	}
	author, ok1 := args[0].(string)
	name, ok2 := args[1].(string)
	key := core.Key{Author: author, Name: name}
	if !ok1 || !ok2 || !key.Valid() {
		return core.Key{}, fmt.Errorf("invalid blueprint key")
	}
	return key, nil
}

func errorPayload(err error) map[string]any {
	return map[string]any{
		"status": "error",
		"error":  err.Error(),
	}
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

// wrapAck adapts whatever callback shape the client library handed us.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}

	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		value.Call(buildAckArgs(typ, err, payload))
	}
}

func buildAckArgs(typ reflect.Type, err error, payload map[string]any) []reflect.Value {
	numIn := typ.NumIn()
	args := make([]reflect.Value, numIn)

	for i := 0; i < numIn; i++ {
		var argValue any
		switch {
		case numIn == 1 && err != nil:
			argValue = err
		case numIn == 1:
			argValue = payload
		case i == 0:
			argValue = err
		case i == 1:
			argValue = payload
		}
		args[i] = coerceValue(argValue, typ.In(i))
	}
	return args
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(targetType):
		return rv
	case rv.Type().ConvertibleTo(targetType):
		return rv.Convert(targetType)
	case targetType.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	}
	return reflect.Zero(targetType)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
