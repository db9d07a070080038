package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/remote"
)

// Posts returns a copy of the feed, newest first.
func (e *Engine) Posts() []models.Post {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Post, len(e.posts))
	copy(out, e.posts)
	return out
}

// AddPost publishes a new post. The local state and store are updated before
// the asynchronous remote write, so the author always sees their post
// immediately; guests never reach the remote store.
func (e *Engine) AddPost(ctx context.Context, req models.CreatePostRequest) (*models.Post, error) {
	if err := validator.New().Struct(req); err != nil {
		return nil, err
	}

	e.mu.Lock()
	user := e.user
	if user == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("no active user")
	}

	post := models.Post{
		ID:             e.nextTimeID(),
		UserID:         user.ID,
		UserName:       user.FullName,
		UserAvatar:     user.Avatar,
		UserIsVerified: user.IsVerified,
		Village:        req.Village,
		Category:       req.Category,
		Content:        req.Content,
		MediaURL:       req.MediaURL,
		MediaType:      req.MediaType,
		Timestamp:      time.Now().UnixMilli(),
		Reactions:      []models.Reaction{},
	}
	e.insertPostLocked(post)
	guest := user.IsGuest()
	e.mu.Unlock()

	e.syncPostToRemote(ctx, guest, post)
	return &post, nil
}

// Repost publishes a copy of an existing post under the acting user, with a
// fresh id and timestamp and zeroed counters.
func (e *Engine) Repost(ctx context.Context, postID string) (*models.Post, error) {
	e.mu.Lock()
	user := e.user
	if user == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("no active user")
	}
	original, ok := e.findPostLocked(postID)
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("post not found")
	}

	post := models.Post{
		ID:             e.nextTimeID(),
		UserID:         user.ID,
		UserName:       user.FullName,
		UserAvatar:     user.Avatar,
		UserIsVerified: user.IsVerified,
		Village:        user.Village,
		Category:       original.Category,
		Content:        original.Content,
		MediaURL:       original.MediaURL,
		MediaType:      original.MediaType,
		Timestamp:      time.Now().UnixMilli(),
		IsRepost:       true,
		OriginalAuthor: original.UserName,
		Reactions:      []models.Reaction{},
	}
	e.insertPostLocked(post)
	guest := user.IsGuest()
	e.mu.Unlock()

	e.syncPostToRemote(ctx, guest, post)
	return &post, nil
}

// DeletePost removes a post owned by the acting user.
func (e *Engine) DeletePost(ctx context.Context, postID string) error {
	e.mu.Lock()
	user := e.user
	if user == nil {
		e.mu.Unlock()
		return fmt.Errorf("no active user")
	}
	post, ok := e.findPostLocked(postID)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("post not found")
	}
	if post.UserID != user.ID {
		e.mu.Unlock()
		return fmt.Errorf("only the author can delete a post")
	}

	kept := e.posts[:0]
	for _, p := range e.posts {
		if p.ID != postID {
			kept = append(kept, p)
		}
	}
	e.posts = kept
	e.persistPostsLocked()
	guest := user.IsGuest()
	e.mu.Unlock()

	if !guest && e.remotePosts != nil {
		go func() {
			if err := e.remotePosts.Delete(context.Background(), postID); err != nil {
				e.logRemoteFailure(err, "post delete")
			}
		}()
	}
	return nil
}

// EditPost rewrites the content of a post owned by the acting user and marks
// it edited. Likes and comments are untouched.
func (e *Engine) EditPost(ctx context.Context, postID, newContent string) error {
	if newContent == "" {
		return fmt.Errorf("content is required")
	}

	e.mu.Lock()
	user := e.user
	if user == nil {
		e.mu.Unlock()
		return fmt.Errorf("no active user")
	}
	updated := false
	for i := range e.posts {
		if e.posts[i].ID == postID {
			if e.posts[i].UserID != user.ID {
				e.mu.Unlock()
				return fmt.Errorf("only the author can edit a post")
			}
			e.posts[i].Content = newContent
			e.posts[i].IsEdited = true
			updated = true
			break
		}
	}
	if !updated {
		e.mu.Unlock()
		return fmt.Errorf("post not found")
	}
	e.persistPostsLocked()
	guest := user.IsGuest()
	e.mu.Unlock()

	if !guest && e.remotePosts != nil {
		go func() {
			err := e.remotePosts.Update(context.Background(), postID, map[string]interface{}{
				"content":  newContent,
				"isEdited": true,
			})
			if err != nil {
				e.logRemoteFailure(err, "post edit")
			}
		}()
	}
	return nil
}

// ReactToPost toggles the acting user's reaction on a post: a new emoji is
// added, a different emoji replaces the existing entry, and reselecting the
// same emoji removes it. The like count always equals the reaction count.
func (e *Engine) ReactToPost(postID, emoji string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	user := e.user
	if user == nil {
		return fmt.Errorf("no active user")
	}

	for i := range e.posts {
		if e.posts[i].ID != postID {
			continue
		}
		// Rebuilt into a fresh slice so snapshots handed out earlier keep
		// their backing array.
		existing, had := e.posts[i].ReactionFor(user.ID)
		reactions := make([]models.Reaction, 0, len(e.posts[i].Reactions)+1)
		for _, r := range e.posts[i].Reactions {
			if r.UserID != user.ID {
				reactions = append(reactions, r)
			}
		}
		if !had || existing.Emoji != emoji {
			reactions = append(reactions, models.Reaction{UserID: user.ID, Emoji: emoji})
		}
		e.posts[i].Reactions = reactions
		e.posts[i].Likes = len(reactions)
		e.persistPostsLocked()
		return nil
	}
	return fmt.Errorf("post not found")
}

// AddComment appends a comment with the acting user's author snapshot.
func (e *Engine) AddComment(req models.AddCommentRequest) (*models.Comment, error) {
	if err := validator.New().Struct(req); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	user := e.user
	if user == nil {
		return nil, fmt.Errorf("no active user")
	}

	for i := range e.posts {
		if e.posts[i].ID != req.PostID {
			continue
		}
		comment := models.Comment{
			ID:         e.nextTimeID(),
			UserID:     user.ID,
			UserName:   user.FullName,
			UserAvatar: user.Avatar,
			Content:    req.Content,
			Timestamp:  time.Now().UnixMilli(),
		}
		list := make([]models.Comment, 0, len(e.posts[i].CommentsList)+1)
		list = append(list, e.posts[i].CommentsList...)
		list = append(list, comment)
		e.posts[i].CommentsList = list
		e.posts[i].Comments = len(list)
		e.persistPostsLocked()
		return &comment, nil
	}
	return nil, fmt.Errorf("post not found")
}

func (e *Engine) insertPostLocked(post models.Post) {
	e.posts = append([]models.Post{post}, e.posts...)
	e.persistPostsLocked()
}

func (e *Engine) findPostLocked(postID string) (models.Post, bool) {
	for _, p := range e.posts {
		if p.ID == postID {
			return p, true
		}
	}
	return models.Post{}, false
}

// syncPostToRemote pushes a new post to the remote store in the background.
// Failures leave the optimistic local state as the visible truth.
func (e *Engine) syncPostToRemote(ctx context.Context, guest bool, post models.Post) {
	if guest || e.remotePosts == nil {
		return
	}
	go func() {
		if err := e.remotePosts.Set(context.Background(), &post); err != nil {
			e.logRemoteFailure(err, "post sync")
		}
	}()
}

func (e *Engine) logRemoteFailure(err error, op string) {
	if remote.IsRecoverable(err) {
		e.log.Debug().Str("op", op).Msg("remote write denied, keeping local state")
		return
	}
	e.log.Error().Err(err).Str("op", op).Msg("remote write failed")
}
