package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"pizzacup/internal/dto"
	"pizzacup/internal/mailer"
	"pizzacup/internal/rabbit"
	"pizzacup/internal/repo"
)

// Notifier sends booking lifecycle emails. *mailer.Mailer satisfies it.
type Notifier interface {
	Send(recipient, kind, eventName string, timeoutMinutes int) error
}

// Reader is the hold-expiry sweep. Every checkout publishes a delayed
// message; when it lands here the slots are released only if the session
// never completed. A hold already finalized by the webhook, or a slot
// re-sold after an earlier release, is untouched.
type Reader struct {
	rmq    *rabbit.Client
	repo   repo.Repository
	mail   Notifier
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, repository repo.Repository, mail Notifier) *Reader {
	return &Reader{
		rmq:  rmq,
		repo: repository,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("hold expiry worker started")

	go func() {
		defer close(r.done)

		if err := r.rmq.Consume(func(body []byte) error {
			return r.handle(cctx, body)
		}); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("hold expiry worker stopped")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

func (r *Reader) handle(ctx context.Context, body []byte) error {
	var msg dto.HoldExpiryMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().Err(err).Msgf("failed to unmarshal expiry message: %s", string(body))
		return err
	}

	released, err := r.repo.ReleaseExpiredHoldTx(ctx, msg.SlotIDs, msg.SessionRef)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("session_ref", msg.SessionRef).Msg("failed to release expired hold")
		return err
	}

	if len(released) == 0 {
		zlog.Logger.Info().
			Str("session_ref", msg.SessionRef).
			Msg("hold already finalized or released, nothing to sweep")
		return nil
	}

	if err := r.repo.MarkPaymentFailed(ctx, msg.SessionRef); err != nil {
		zlog.Logger.Error().Err(err).Str("session_ref", msg.SessionRef).Msg("failed to mark pending payment failed")
	}

	zlog.Logger.Info().
		Str("session_ref", msg.SessionRef).
		Strs("slot_ids", released).
		Msg("expired hold released")

	if msg.UserEmail != "" {
		event, err := r.repo.GetEventByID(ctx, msg.EventID)
		if err != nil {
			zlog.Logger.Error().Err(err).Str("event_id", msg.EventID).Msg("failed to load event for expiry email")
			return nil
		}
		if err := r.mail.Send(msg.UserEmail, mailer.KindExpired, event.Name, 0); err != nil {
			zlog.Logger.Warn().Err(err).Msg("failed to send expiry email")
		}
	}
	return nil
}
