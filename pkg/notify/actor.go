package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// Messages
type sendMail struct {
	Mail Mail
}

type mailResult struct {
	Err error
}

// mailActor handles one mail at a time with the wrapped Mailer.
type mailActor struct {
	mailer  Mailer
	timeout time.Duration
	logger  *zap.Logger
}

func (a *mailActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *sendMail:
		a.logger.Info("Sending mail",
			zap.String("recipient", msg.Mail.To),
			zap.String("subject", msg.Mail.Subject))

		sendCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.mailer.Send(sendCtx, msg.Mail)
		cancel()
		if err != nil {
			a.logger.Error("Failed to send mail", zap.String("recipient", msg.Mail.To), zap.Error(err))
		}
		ctx.Respond(&mailResult{Err: err})

	case *actor.Started:
		a.logger.Info("Mail actor started")

	case *actor.Stopped:
		a.logger.Info("Mail actor stopped")
	}
}

// Dispatcher sends mail through a single mail actor.
type Dispatcher struct {
	system  *actor.ActorSystem
	pid     *actor.PID
	timeout time.Duration
}

// NewDispatcher spawns the mail actor. timeout bounds both the SMTP exchange
// and the caller's wait for it.
func NewDispatcher(mailer Mailer, timeout time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &mailActor{mailer: mailer, timeout: timeout, logger: logger.Named("mail-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "mail-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn mail actor: %w", err)
	}

	return &Dispatcher{system: system, pid: pid, timeout: timeout}, nil
}

// Send queues m and waits for the actor's answer.
func (d *Dispatcher) Send(ctx context.Context, m Mail) error {
	wait := d.timeout + time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < wait {
			wait = left
		}
	}
	if wait <= 0 {
		return context.DeadlineExceeded
	}

	result, err := d.system.Root.RequestFuture(d.pid, &sendMail{Mail: m}, wait).Result()
	if err != nil {
		return fmt.Errorf("mail actor: %w", err)
	}
	res, ok := result.(*mailResult)
	if !ok {
		return errors.New("mail actor: unexpected response")
	}
	return res.Err
}

func (d *Dispatcher) Close() {
	d.system.Root.Stop(d.pid)
}
