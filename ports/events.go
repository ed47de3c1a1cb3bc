package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/sproutgame/sprout-server/core"
)

// EventPublisher notifies other services of auth and claim activity.
// Publishing is best-effort: a failure is logged, never surfaced to the
// caller of the operation that produced the event.
type EventPublisher interface {
	// PublishLogin announces a successful authentication.
	PublishLogin(ctx context.Context, userID uuid.UUID, address string, isNewUser bool) error

	// PublishLogout announces a session revocation.
	PublishLogout(ctx context.Context, userID uuid.UUID, address string) error

	// PublishClaimAuthorized announces an issued claim authorization.
	PublishClaimAuthorized(ctx context.Context, userID uuid.UUID, address string, claim *core.SignedClaim) error
}
