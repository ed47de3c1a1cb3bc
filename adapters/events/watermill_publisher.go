package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/ports"
)

// Topics carrying cross-instance notifications. Other services (and other
// instances of this one) subscribe to these streams.
const (
	TopicLogin           = "sprout.auth.login"
	TopicLogout          = "sprout.auth.logout"
	TopicClaimAuthorized = "sprout.claim.authorized"
)

// LoginEvent announces a successful wallet authentication.
type LoginEvent struct {
	UserID    string    `json:"user_id"`
	Address   string    `json:"address"`
	IsNewUser bool      `json:"is_new_user"`
	At        time.Time `json:"at"`
}

// LogoutEvent announces a session revocation.
type LogoutEvent struct {
	UserID  string    `json:"user_id"`
	Address string    `json:"address"`
	At      time.Time `json:"at"`
}

// ClaimAuthorizedEvent announces an issued claim authorization. The
// signature itself is deliberately absent: the stream is for analytics and
// alerting, not a second channel for spendable capabilities.
type ClaimAuthorizedEvent struct {
	UserID   string    `json:"user_id"`
	Address  string    `json:"address"`
	Kind     string    `json:"claim_kind"`
	Amount   string    `json:"amount"`
	Deadline time.Time `json:"deadline"`
	At       time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a publisher over the given Watermill
// transport.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// PublishLogin publishes a login event.
func (p *WatermillPublisher) PublishLogin(_ context.Context, userID uuid.UUID, address string, isNewUser bool) error {
	return p.publish(TopicLogin, LoginEvent{
		UserID:    userID.String(),
		Address:   address,
		IsNewUser: isNewUser,
		At:        time.Now().UTC(),
	})
}

// PublishLogout publishes a logout event.
func (p *WatermillPublisher) PublishLogout(_ context.Context, userID uuid.UUID, address string) error {
	return p.publish(TopicLogout, LogoutEvent{
		UserID:  userID.String(),
		Address: address,
		At:      time.Now().UTC(),
	})
}

// PublishClaimAuthorized publishes a claim authorization event.
func (p *WatermillPublisher) PublishClaimAuthorized(_ context.Context, userID uuid.UUID, address string, claim *core.SignedClaim) error {
	return p.publish(TopicClaimAuthorized, ClaimAuthorizedEvent{
		UserID:   userID.String(),
		Address:  address,
		Kind:     string(claim.Kind),
		Amount:   claim.Amount.String(),
		Deadline: claim.Deadline,
		At:       time.Now().UTC(),
	})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
