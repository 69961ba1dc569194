// Package messenger is a multi-user messenger. Every connection signs in as
// a user; users see each other in /users and keep per-user conversations
// that the session exposes under /session/conversations.
package messenger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pushmodel-dev/pushmodel/pkg/model"
	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
)

// TimestampGap is the pause after which a message is stamped with its time.
const TimestampGap = 5 * time.Minute

// UserInfo is the argument of signIn.
type UserInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Option configures the messenger.
type Option func(*messenger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(ms *messenger) { ms.now = now }
}

type messenger struct {
	m   *model.Model
	now func() time.Time

	// lastModified holds the time of the latest message per log.
	lastModified map[*observe.Array]time.Time
}

// New returns the model. Its root holds "users", an object keyed by user id
// whose "keys" array lists the signed-in users.
func New(opts ...Option) *model.Model {
	ms := &messenger{
		now:          time.Now,
		lastModified: make(map[*observe.Array]time.Time),
	}
	for _, opt := range opts {
		opt(ms)
	}

	users := observe.NewObject()
	observe.TrackKeys(users)
	root := observe.NewObject()
	root.Set("users", users)

	reg := rpc.NewRegistry()
	reg.Register(rpc.MethodConnect, rpc.Func0(ms.onConnect))
	reg.Register(rpc.MethodDisconnect, rpc.Func0(ms.onDisconnect))
	reg.Register("signIn", rpc.Func1(ms.signIn))
	reg.Register("showMessenger", rpc.Func1(ms.showMessenger))
	reg.Register("openChat", rpc.Func1(ms.openChat))
	reg.Register("sendChat", rpc.Func2(ms.sendChat))
	reg.Register("closeChat", rpc.Func1(ms.closeChat))
	reg.Register("resizeChat", rpc.Func2(ms.resizeChat))
	reg.Register("moveChat", rpc.Func2(ms.moveChat))

	ms.m = model.New(root, reg)
	return ms.m
}

func (ms *messenger) users() *observe.Object {
	return ms.m.Root().Object("users")
}

func (ms *messenger) session() *observe.Object {
	return ms.m.SessionObject()
}

// me returns the signed-in user of the current session.
func (ms *messenger) me() (*observe.Object, error) {
	if s := ms.session(); s != nil {
		if u, ok := s.Get("_user").(*observe.Object); ok {
			return u, nil
		}
	}
	return nil, protocol.ErrApplication("Not signed in")
}

func (ms *messenger) conversation(other int) (*observe.Object, error) {
	s := ms.session()
	if s == nil || s.Object("conversations") == nil {
		return nil, protocol.ErrApplication("Not signed in")
	}
	conv := s.Object("conversations").Object(strconv.Itoa(other))
	if conv == nil {
		return nil, protocol.ErrApplication(fmt.Sprintf("No conversation with user %d", other))
	}
	return conv, nil
}

func (ms *messenger) onConnect() (any, error) {
	ms.m.SetSession(observe.NewObject())
	return nil, nil
}

func (ms *messenger) onDisconnect() (any, error) {
	user, err := ms.me()
	if err != nil {
		return nil, nil
	}
	user.Set("sessions", user.Get("sessions").(int)-1)
	return nil, nil
}

func (ms *messenger) signIn(info UserInfo) (any, error) {
	key := strconv.Itoa(info.ID)
	user := ms.users().Object(key)
	if user != nil {
		user.Set("name", info.Name)
		user.Set("sessions", user.Get("sessions").(int)+1)
	} else {
		state := observe.NewObject()
		state.Set("showMessenger", false)
		convs := observe.NewObject()
		observe.TrackKeys(convs)

		user = observe.NewObject()
		user.Set("id", info.ID)
		user.Set("name", info.Name)
		user.Set("sessions", 1)
		user.Set("_state", state)
		user.Set("_conversations", convs)
		ms.users().Set(key, user)
	}

	s := ms.session()
	s.Set("_user", user)
	s.Set("state", user.Get("_state"))
	s.Set("conversations", user.Get("_conversations"))
	return nil, nil
}

func (ms *messenger) showMessenger(show bool) (any, error) {
	if _, err := ms.me(); err != nil {
		return nil, err
	}
	ms.session().Object("state").Set("showMessenger", show)
	return nil, nil
}

func (ms *messenger) openChat(other int) (any, error) {
	me, err := ms.me()
	if err != nil {
		return nil, err
	}
	myID := me.Get("id").(int)
	if other == myID {
		return nil, nil
	}

	convs := ms.session().Object("conversations")
	if conv := convs.Object(strconv.Itoa(other)); conv != nil {
		conv.Set("open", true)
		return nil, nil
	}

	peer := ms.users().Object(strconv.Itoa(other))
	if peer == nil {
		return nil, protocol.ErrApplication(fmt.Sprintf("Unknown user %d", other))
	}

	log := observe.NewArray()
	ms.lastModified[log] = ms.now()

	conv := observe.NewObject()
	conv.Set("log", log)
	conv.Set("open", true)
	convs.Set(strconv.Itoa(other), conv)

	theirs := observe.NewObject()
	theirs.Set("log", log)
	peer.Get("_conversations").(*observe.Object).Set(strconv.Itoa(myID), theirs)
	return nil, nil
}

func (ms *messenger) sendChat(other int, message string) (any, error) {
	me, err := ms.me()
	if err != nil {
		return nil, err
	}
	conv, err := ms.conversation(other)
	if err != nil {
		return nil, err
	}
	myID := me.Get("id").(int)

	log := conv.Array("log")
	now := ms.now()
	entry := map[string]any{"sender": myID, "text": message}
	if ms.lastModified[log].Before(now.Add(-TimestampGap)) {
		entry["time"] = now.UnixMilli()
	}
	log.Push(entry)
	ms.lastModified[log] = now

	peer := ms.users().Object(strconv.Itoa(other))
	peer.Get("_conversations").(*observe.Object).Object(strconv.Itoa(myID)).Set("open", true)
	return nil, nil
}

func (ms *messenger) closeChat(other int) (any, error) {
	return ms.setConversation(other, "open", false)
}

func (ms *messenger) resizeChat(other int, size any) (any, error) {
	return ms.setConversation(other, "size", size)
}

func (ms *messenger) moveChat(other int, position any) (any, error) {
	return ms.setConversation(other, "position", position)
}

func (ms *messenger) setConversation(other int, key string, v any) (any, error) {
	conv, err := ms.conversation(other)
	if err != nil {
		return nil, err
	}
	conv.Set(key, v)
	return nil, nil
}
