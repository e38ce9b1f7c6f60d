package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"estatechain/server/internal/models"
)

// WaitReceipt polls for the receipt of hash until it is mined or ctx ends.
// A mined receipt with failed status is returned together with
// models.ErrTransactionReverted; an expired ctx yields models.ErrTimeout. The
// transaction itself stays in the node's pool either way.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	logger := c.logger.WithField("tx_hash", hash.Hex())

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				logger.WithField("block", receipt.BlockNumber).Warn("Transaction reverted")
				return receipt, fmt.Errorf("%w: transaction %s", models.ErrTransactionReverted, hash.Hex())
			}
			logger.WithFields(logrus.Fields{
				"block":    receipt.BlockNumber,
				"gas_used": receipt.GasUsed,
			}).Info("Transaction mined")
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			logger.Debug("Transaction not yet mined")
		default:
			logger.WithError(err).Debug("Receipt lookup failed")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: transaction %s: %v", models.ErrTimeout, hash.Hex(), ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}
