package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"estatechain/server/internal/models"
)

// Confirmation is a pending transaction outcome. It resolves once the
// receipt has been fetched and interpreted, or the receipt timeout expires.
type Confirmation[T any] struct {
	hash   common.Hash
	op     error
	done   chan struct{}
	result T
	err    error
}

func newConfirmation[T any](hash common.Hash, op error) *Confirmation[T] {
	return &Confirmation[T]{hash: hash, op: op, done: make(chan struct{})}
}

func (c *Confirmation[T]) resolve(result T, err error) {
	c.result = result
	c.err = err
	close(c.done)
}

// TxHash is the hash of the submitted transaction.
func (c *Confirmation[T]) TxHash() common.Hash {
	return c.hash
}

// Done is closed when the outcome is known.
func (c *Confirmation[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the outcome is known or ctx ends. Giving up on the wait
// does not withdraw the transaction.
func (c *Confirmation[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w: transaction %s: %v", c.op, models.ErrTimeout, c.hash.Hex(), ctx.Err())
	}
}

// confirm waits for hash in the background and interprets the receipt with
// finish. The wait is detached from ctx cancellation and bounded by the
// receipt timeout, so a caller that stops waiting still gets the event
// published once the transaction is mined.
func confirm[T any](ctx context.Context, o *Orchestrator, op string, opErr error, hash common.Hash, finish func(*types.Receipt) (T, error)) *Confirmation[T] {
	c := newConfirmation[T](hash, opErr)
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.receiptTimeout)

	go func() {
		defer cancel()
		start := time.Now()
		receipt, err := o.gateway.WaitReceipt(waitCtx, hash)
		o.metrics.ObserveConfirmationWait(op, time.Since(start))
		if err != nil {
			o.logger.WithError(err).WithFields(logrus.Fields{
				"operation": op,
				"tx_hash":   hash.Hex(),
			}).Error("Transaction not confirmed")
			var zero T
			c.resolve(zero, fmt.Errorf("%w: %w", opErr, err))
			return
		}
		c.resolve(finish(receipt))
	}()

	return c
}
