package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserProfileKeyPrefix = "user:%d:profile"
	PostKeyPrefix        = "post:%d"
	HashtagListKey       = "hashtags:popular"
)

const (
	UserTTL    = 5 * time.Minute
	PostTTL    = 30 * time.Minute
	HashtagTTL = 2 * time.Minute
)

func UserProfileKey(userID uint) string {
	return fmt.Sprintf(UserProfileKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserProfileKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

func InvalidateHashtags(ctx context.Context) {
	Invalidate(ctx, HashtagListKey)
}
