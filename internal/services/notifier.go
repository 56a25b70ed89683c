package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"budgetbuddy/internal/cloudsync"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/repository"
)

// KeyPublisher announces key changes to the sync worker.
type KeyPublisher interface {
	PublishKeyChanged(ctx context.Context, userID, key string) error
}

// PublishingNotifier forwards repository writes to a KeyPublisher while a
// user is signed in. Publishing happens in the background; a failed
// publish is logged and never fails the write.
type PublishingNotifier struct {
	publisher KeyPublisher
	identity  cloudsync.IdentityProvider
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

var _ repository.ChangeNotifier = (*PublishingNotifier)(nil)

func NewPublishingNotifier(p KeyPublisher, identity cloudsync.IdentityProvider) *PublishingNotifier {
	return &PublishingNotifier{
		publisher: p,
		identity:  identity,
		timeout:   10 * time.Second,
		logger:    log.For(log.ComponentAMQP),
	}
}

func (n *PublishingNotifier) KeyChanged(ctx context.Context, key string) {
	uid, ok := n.identity.UserID()
	if !ok {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.publisher.PublishKeyChanged(ctx, uid, key); err != nil {
			n.logger.WarnContext(ctx, "Failed to publish key change",
				log.FieldUserID, uid, log.FieldKey, key, log.FieldError, err)
		}
	}()
}

// Wait blocks until in-flight publishes finish.
func (n *PublishingNotifier) Wait() {
	n.wg.Wait()
}
