package services

import (
	"context"

	"qltc/internal/amqp"
	"qltc/internal/core"
)

// EventPublisher is the outbound side of the AMQP client.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// AMQPNotifier turns store changes into transaction events.
type AMQPNotifier struct {
	pub EventPublisher
}

func NewAMQPNotifier(pub EventPublisher) *AMQPNotifier {
	return &AMQPNotifier{pub: pub}
}

func (n *AMQPNotifier) NotifyChange(ctx context.Context, c Change) error {
	ev := amqp.NewTransactionEvent(c.Action, c.Transaction.ID, Snapshot(c.Transaction), c.At)
	return n.pub.PublishTransactionEvent(ctx, ev)
}

// Snapshot renders a transaction in its wire form.
func Snapshot(t core.Transaction) *amqp.TransactionSnapshot {
	return &amqp.TransactionSnapshot{
		ID:       t.ID,
		Date:     t.Date.String(),
		Type:     t.Type,
		Category: t.Category,
		Amount:   t.Amount.String(),
		Note:     t.Note,
	}
}
