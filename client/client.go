// Package client assembles the community client: local store, remote
// gateways, session manager, upload gateway and the reconciliation engine.
// Construct one Client at process start and close it at exit; all state
// mutation goes through its components.
package client

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/engine"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/localstore"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/remote"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/session"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/upload"
	"github.com/RafaelMokgaha/Blouconnectapplication/pkg/config"
	"github.com/RafaelMokgaha/Blouconnectapplication/pkg/firebase"
)

// Client is the embedded application client.
type Client struct {
	Session *session.Manager
	Engine  *engine.Engine
	Uploads *upload.Gateway

	store    *localstore.SQLiteStore
	watcher  *localstore.Watcher
	firebase *firebase.App
	log      zerolog.Logger
}

// New builds the client from configuration. Without Firebase credentials the
// client runs in local-only mode: guest sessions work fully, remote sync is
// disabled.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Client, error) {
	store, err := localstore.Open(cfg.LocalStorePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	var (
		fbApp      *firebase.App
		authClient session.Authenticator
		users      remote.UserStore
		posts      remote.PostStore
		chats      remote.ChatStore
		files      remote.FileStore
		blobs      upload.BlobStore
	)
	if cfg.FirebaseCredentialsPath != "" {
		fbApp, err = firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.StorageBucket)
		if err != nil {
			store.Close()
			return nil, err
		}
		authClient = fbApp.AuthClient
		users = remote.NewFirestoreUserStore(fbApp.Firestore)
		posts = remote.NewFirestorePostStore(fbApp.Firestore, log)
		chats = remote.NewFirestoreChatStore(fbApp.Firestore, log)
		files = remote.NewFirestoreFileStore(fbApp.Firestore)
		blobs = upload.NewBucketBlobStore(fbApp.Bucket, fbApp.BucketName)
	} else {
		log.Info().Msg("no firebase credentials configured, running local-only")
	}

	sess := session.NewManager(authClient, users, store, remote.IsRecoverable, log)
	eng := engine.New(store, posts, chats, sess, cfg.PollInterval, log)
	uploads := upload.NewGateway(blobs, files, log)

	// Other processes sharing the device store trigger an immediate reload
	// through the file watcher; the engine's poll loop remains the backstop.
	watcher, werr := localstore.WatchFile(store.Path(), log, eng.Reload)
	if werr != nil {
		log.Warn().Err(werr).Msg("store watching unavailable, relying on polling")
	}

	sess.Resume()

	return &Client{
		Session:  sess,
		Engine:   eng,
		Uploads:  uploads,
		store:    store,
		watcher:  watcher,
		firebase: fbApp,
		log:      log,
	}, nil
}

// Close tears down subscriptions, watchers and connections.
func (c *Client) Close() error {
	c.Engine.Close()
	if c.watcher != nil {
		c.watcher.Close()
	}
	if c.firebase != nil {
		c.firebase.Close()
	}
	return c.store.Close()
}
