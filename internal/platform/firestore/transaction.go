package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	txAttempts = 5
	txTimeout  = 15 * time.Second
)

// TxFunc is executed within a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// RunTransaction runs fn with bounded retries and names failures after op, for example
// "orders.insert" or "carts.clear". The transaction never outlives txTimeout.
func RunTransaction(ctx context.Context, client *firestore.Client, op string, fn TxFunc) error {
	if client == nil {
		return WrapError(op, errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError(op, errors.New("firestore: transaction function is nil"))
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > txTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, txTimeout)
		defer cancel()
	}

	err := client.RunTransaction(ctx, fn, firestore.MaxAttempts(txAttempts))
	return WrapError(op, err)
}
