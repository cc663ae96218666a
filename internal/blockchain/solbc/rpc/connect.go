// internal/blockchain/solbc/rpc/connect.go
package rpc

import (
	"context"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Connect ищет рабочий узел: запрашивает слот, переключаясь по пулу.
// Ошибка здесь означает, что запускаться не на чем.
func Connect(ctx context.Context, pool *NodePool, opts ...ExecuteOption) (*Endpoint[*solanarpc.Client], error) {
	opts = append([]ExecuteOption{WithMethod("getSlot")}, opts...)

	slot, err := Execute(ctx, pool, func(ctx context.Context, ep *Endpoint[*solanarpc.Client]) (uint64, error) {
		return ep.Client.GetSlot(ctx, solanarpc.CommitmentConfirmed)
	}, opts...)
	if err != nil {
		return nil, err
	}

	ep := pool.Current()
	pool.logger.Info("✅ Connected to RPC endpoint",
		zap.String("endpoint", ep.URL),
		zap.Uint64("slot", slot))

	return ep, nil
}
