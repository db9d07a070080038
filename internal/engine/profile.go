package engine

import (
	"context"
	"fmt"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
)

// ProfileUpdate carries a partial profile mutation. Nil fields are left
// untouched; a non-nil FollowingIDs replaces the whole set.
type ProfileUpdate struct {
	FullName     *string
	Village      *string
	Avatar       *string
	Banner       *string
	About        *string
	Followers    *int
	Following    *int
	TotalLikes   *int
	FollowingIDs []string
}

// UpdateProfile mutates the acting user's record. The verification flag is
// re-derived before committing, and every post and comment the user authored
// is rewritten in place with the new author snapshot. Remote copies of that
// content converge on the next snapshot.
func (e *Engine) UpdateProfile(ctx context.Context, update ProfileUpdate) (*models.User, error) {
	e.mu.Lock()
	if e.user == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("no active user")
	}
	updated := *e.user
	if update.FullName != nil {
		updated.FullName = *update.FullName
	}
	if update.Village != nil {
		updated.Village = *update.Village
	}
	if update.Avatar != nil {
		updated.Avatar = *update.Avatar
	}
	if update.Banner != nil {
		updated.Banner = *update.Banner
	}
	if update.About != nil {
		updated.About = *update.About
	}
	if update.Followers != nil {
		updated.Followers = *update.Followers
	}
	if update.Following != nil {
		updated.Following = *update.Following
	}
	if update.TotalLikes != nil {
		updated.TotalLikes = *update.TotalLikes
	}
	if update.FollowingIDs != nil {
		updated.FollowingIDs = update.FollowingIDs
	}
	updated.RecomputeVerification()
	e.user = &updated
	e.applyAuthorUpdateLocked(&updated)
	e.mu.Unlock()

	if err := e.session.Save(ctx, &updated); err != nil {
		return nil, err
	}
	return e.User(), nil
}

// applyAuthorUpdateLocked backfills the user's display fields into every post
// and comment they authored. Bounded: only the acting user's own content is
// rewritten. Comment lists are cloned before rewriting so previously returned
// snapshots keep their backing arrays.
func (e *Engine) applyAuthorUpdateLocked(user *models.User) {
	changed := false
	for i := range e.posts {
		if e.posts[i].UserID == user.ID {
			e.posts[i].UserName = user.FullName
			e.posts[i].UserAvatar = user.Avatar
			e.posts[i].UserIsVerified = user.IsVerified
			e.posts[i].Village = user.Village
			changed = true
		}
		authored := false
		for _, c := range e.posts[i].CommentsList {
			if c.UserID == user.ID {
				authored = true
				break
			}
		}
		if !authored {
			continue
		}
		list := make([]models.Comment, len(e.posts[i].CommentsList))
		copy(list, e.posts[i].CommentsList)
		for j := range list {
			if list[j].UserID == user.ID {
				list[j].UserName = user.FullName
				list[j].UserAvatar = user.Avatar
			}
		}
		e.posts[i].CommentsList = list
		changed = true
	}
	if changed {
		e.persistPostsLocked()
	}
}

// IsFollowing reports whether the acting user follows the target.
func (e *Engine) IsFollowing(targetID string) bool {
	user := e.User()
	return user != nil && user.FollowsUser(targetID)
}

// ToggleFollow follows or unfollows the target user, keeping the followingIds
// set free of duplicates and the following count non-negative. Routed through
// UpdateProfile so verification recompute and snapshot fan-out apply.
func (e *Engine) ToggleFollow(ctx context.Context, targetID string) error {
	user := e.User()
	if user == nil {
		return fmt.Errorf("no active user")
	}
	if targetID == "" || targetID == user.ID {
		return fmt.Errorf("invalid follow target")
	}

	following := user.Following
	ids := make([]string, 0, len(user.FollowingIDs)+1)
	if user.FollowsUser(targetID) {
		for _, id := range user.FollowingIDs {
			if id != targetID {
				ids = append(ids, id)
			}
		}
		if following > 0 {
			following--
		}
	} else {
		ids = append(ids, user.FollowingIDs...)
		ids = append(ids, targetID)
		following++
	}

	_, err := e.UpdateProfile(ctx, ProfileUpdate{Following: &following, FollowingIDs: ids})
	return err
}
