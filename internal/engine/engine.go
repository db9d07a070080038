// Package engine implements the client-side reconciliation layer. It owns the
// in-memory view of posts, chats, messages and the active user, and keeps it
// consistent across the on-device store, the remote live subscriptions and
// locally originated optimistic writes.
package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/localstore"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/remote"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/session"
)

// remoteQueryLimit caps the live subscriptions on chats and posts.
const remoteQueryLimit = 50

// Engine reconciles local state, on-device persistence and the remote
// database for one actor at a time.
type Engine struct {
	log          zerolog.Logger
	store        localstore.Store
	remotePosts  remote.PostStore
	remoteChats  remote.ChatStore
	session      *session.Manager
	pollInterval time.Duration

	mu         sync.Mutex
	user       *models.User
	posts      []models.Post
	chats      []models.Chat
	messages   map[string][]models.Message
	darkMode   bool
	appliedRev map[string]uint64
	lastTimeID int64

	stopPoll   context.CancelFunc
	unsubStore func()
	stopSubs   []func()
	cancelSubs context.CancelFunc
}

// New creates the engine and starts its local sync loop. remotePosts and
// remoteChats may be nil for a client running without remote credentials.
func New(store localstore.Store, remotePosts remote.PostStore, remoteChats remote.ChatStore, sess *session.Manager, pollInterval time.Duration, log zerolog.Logger) *Engine {
	e := &Engine{
		log:          log,
		store:        store,
		remotePosts:  remotePosts,
		remoteChats:  remoteChats,
		session:      sess,
		pollInterval: pollInterval,
		messages:     make(map[string][]models.Message),
		appliedRev:   make(map[string]uint64),
	}

	if theme, ok := store.Get(localstore.KeyTheme); ok {
		e.darkMode = theme == "dark"
	}

	// In-process writes to the watched keys reload immediately instead of
	// waiting for the next poll tick.
	e.unsubStore = store.Subscribe(e.onStoreChange)

	pollCtx, cancel := context.WithCancel(context.Background())
	e.stopPoll = cancel
	go e.pollLoop(pollCtx)

	sess.OnChange(e.onActorChange)
	e.onActorChange(sess.Current())

	return e
}

// Close tears down the poll loop and any open subscriptions. The store is
// owned by the caller and stays open.
func (e *Engine) Close() {
	e.stopPoll()
	e.unsubStore()
	e.mu.Lock()
	e.teardownSubsLocked()
	e.mu.Unlock()
}

// User returns a copy of the active actor, or nil.
func (e *Engine) User() *models.User {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.user == nil {
		return nil
	}
	u := *e.user
	return &u
}

// DarkMode reports the persisted theme preference.
func (e *Engine) DarkMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.darkMode
}

// ToggleDarkMode flips and persists the theme preference.
func (e *Engine) ToggleDarkMode() bool {
	e.mu.Lock()
	e.darkMode = !e.darkMode
	mode := "light"
	if e.darkMode {
		mode = "dark"
	}
	on := e.darkMode
	e.mu.Unlock()

	e.store.Set(localstore.KeyTheme, mode)
	return on
}

// onActorChange re-runs the bootstrapping contract for the new actor:
// previous subscriptions are torn down first so no state bleeds across
// accounts, local snapshots are adopted, and remote subscriptions are opened
// for authenticated users. Guests never open remote subscriptions.
func (e *Engine) onActorChange(user *models.User) {
	e.mu.Lock()
	e.teardownSubsLocked()
	e.user = user
	e.chats = nil
	e.messages = make(map[string][]models.Message)
	for key := range e.appliedRev {
		if key != localstore.KeyPosts {
			delete(e.appliedRev, key)
		}
	}
	e.mu.Unlock()

	e.Reload()

	if user == nil || user.IsGuest() {
		return
	}
	if e.remoteChats == nil && e.remotePosts == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancelSubs = cancel
	if e.remoteChats != nil {
		e.stopSubs = append(e.stopSubs, e.remoteChats.Subscribe(ctx, user.ID, remoteQueryLimit, e.applyChatSnapshot))
	}
	if e.remotePosts != nil {
		e.stopSubs = append(e.stopSubs, e.remotePosts.Subscribe(ctx, remoteQueryLimit, e.applyPostSnapshot))
	}
	e.mu.Unlock()
}

func (e *Engine) teardownSubsLocked() {
	if e.cancelSubs != nil {
		e.cancelSubs()
		e.cancelSubs = nil
	}
	for _, stop := range e.stopSubs {
		stop()
	}
	e.stopSubs = nil
}

// pollLoop is the correctness backstop for sync: guests have no remote push
// channel, so the per-actor keys are re-read on a fixed interval and adopted
// when their stored revision moved.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Reload()
		}
	}
}

// onStoreChange reacts to in-process store writes for the watched keys. The
// store delivers notifications synchronously from inside Set, possibly while
// this engine holds its own lock, so all work moves to a fresh goroutine.
func (e *Engine) onStoreChange(key string) {
	go func() {
		user := e.User()
		relevant := key == localstore.KeyPosts
		if user != nil {
			relevant = relevant || key == localstore.ChatsKey(user.ID) || key == localstore.MessagesKey(user.ID)
		}
		if relevant {
			e.Reload()
		}
	}()
}

// Reload re-reads the persisted snapshots and adopts any whose revision
// differs from the last applied one. Safe to call from the poller, the store
// watcher and the change subscription concurrently; it is idempotent.
func (e *Engine) Reload() {
	e.reloadKey(localstore.KeyPosts, func(raw []byte) error {
		var posts []models.Post
		if err := unmarshal(raw, &posts); err != nil {
			return err
		}
		e.posts = posts
		return nil
	})

	user := e.User()
	if user == nil {
		return
	}

	e.reloadKey(localstore.ChatsKey(user.ID), func(raw []byte) error {
		var chats []models.Chat
		if err := unmarshal(raw, &chats); err != nil {
			return err
		}
		e.chats = chats
		return nil
	})

	e.reloadKey(localstore.MessagesKey(user.ID), func(raw []byte) error {
		msgs := make(map[string][]models.Message)
		if err := unmarshal(raw, &msgs); err != nil {
			return err
		}
		e.messages = msgs
		return nil
	})
}

// reloadKey adopts the stored value for a key when its revision moved.
// apply runs under the state lock.
func (e *Engine) reloadKey(key string, apply func(raw []byte) error) {
	raw, ok := e.store.Get(key)
	if !ok {
		return
	}
	rev := e.store.Revision(key)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.appliedRev[key] == rev {
		return
	}
	if err := apply([]byte(raw)); err != nil {
		e.log.Warn().Err(err).Str("key", key).Msg("ignoring corrupt stored value")
	}
	e.appliedRev[key] = rev
}

// nextTimeID issues a time-based id guaranteed unique within this
// device-session.
func (e *Engine) nextTimeID() string {
	id := time.Now().UnixMilli()
	if id <= e.lastTimeID {
		id = e.lastTimeID + 1
	}
	e.lastTimeID = id
	return strconv.FormatInt(id, 10)
}
