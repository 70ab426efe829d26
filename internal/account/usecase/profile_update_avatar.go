package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/otpgate/otpgate/internal/account/entity"
	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/storage"
)

//nolint:gochecknoglobals // global for fast reuse
var avatarContentTypeExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type ProfileUpdateAvatarInput struct {
	File        io.Reader
	Size        int64
	ContentType string
}

// ProfileUpdateAvatar stores a new profile picture in object storage and
// records its key on the account.
func (u *Usecase) ProfileUpdateAvatar(ctx context.Context, in ProfileUpdateAvatarInput) error {
	ctx, span := u.startSpan(ctx, "ProfileUpdateAvatar")
	defer span.End()

	user, err := u.currentUser(ctx)
	if err != nil {
		return err
	}

	if in.File == nil {
		return goerror.NewBusiness("Avatar file is required", goerror.CodeInvalidInput)
	}

	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	ext, ok := avatarContentTypeExt[contentType]
	if !ok {
		return goerror.NewBusiness("Unsupported avatar content type", goerror.CodeInvalidInput)
	}

	key := fmt.Sprintf("avatars/%d%s", user.ID, ext)
	if _, err := u.storage.PutObject(ctx, u.avatarBucket, key, in.File, storage.PutOptions{
		Size:        in.Size,
		ContentType: contentType,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to upload avatar", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	if err := u.users.UpdateAvatar(ctx, user.ID, key); err != nil {
		slog.ErrorContext(ctx, "failed to repo update user avatar", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	u.publish(ctx, entity.EventProfileUpdated, map[string]any{
		"user_id": user.ID,
		"field":   "avatar",
	})

	return nil
}
