package port

import "context"

// NotificationSender delivers account emails. Delivery is best-effort and
// fire-and-forget: failures must never surface into the account state
// transition they accompany.
type NotificationSender interface {
	SendVerification(ctx context.Context, email, link string) error
	SendPasswordReset(ctx context.Context, email, link string) error
}
