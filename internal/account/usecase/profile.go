package usecase

import (
	"context"
	"log/slog"

	"github.com/otpgate/otpgate/internal/account/entity"
)

// Profile returns the authenticated account. When the avatar lives in object
// storage the stored key is exchanged for a short-lived download link.
func (u *Usecase) Profile(ctx context.Context) (*entity.User, error) {
	ctx, span := u.startSpan(ctx, "Profile")
	defer span.End()

	user, err := u.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	if user.AvatarURL != "" && u.storage != nil {
		signed, err := u.storage.PresignGet(ctx, u.avatarBucket, user.AvatarURL, u.avatarURLTTL)
		if err != nil {
			// Profile reads should not fail over a link, serve without it.
			slog.WarnContext(ctx, "failed to presign avatar url", "user_id", user.ID, "error", err)
			user.AvatarURL = ""
		} else {
			user.AvatarURL = signed
		}
	}

	return user, nil
}
