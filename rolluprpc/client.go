// Package rolluprpc is the conductor's outbound client to the rollup
// execution engine (spec.md §6 "Outbound from core"). It drives the
// same gRPC service astriaorg-flame's grpc/execution server package
// implements: ExecuteBlock, GetCommitmentState, UpdateCommitmentState.
package rolluprpc

import (
	"context"
	"fmt"
	"time"

	astriaGrpc "buf.build/gen/go/astria/execution-apis/grpc/go/astria/execution/v1/executionv1grpc"
	astriaPb "buf.build/gen/go/astria/execution-apis/protocolbuffers/go/astria/execution/v1"
	sequencerblockv1 "buf.build/gen/go/astria/sequencerblock-apis/protocolbuffers/go/astria/sequencerblock/v1"
	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/MuhtasimTanmoy/conductor/rollup"
)

// CommitmentState mirrors the rollup engine's notion of soft/firm
// heads, returned by GetCommitmentState.
type CommitmentState struct {
	SoftHash common.Hash
	SoftNum  uint64
	FirmHash common.Hash
	FirmNum  uint64
}

// Client is everything the executor needs from the rollup execution
// engine.
type Client interface {
	// ExecuteBlock executes txs atop parentHash, returning the
	// resulting rollup block hash and height.
	ExecuteBlock(ctx context.Context, parentHash common.Hash, txs []rollup.RollupTx, timestamp time.Time, sequencerHash *common.Hash) (rollup.RollupBlock, error)
	// FinalizeBlock marks rollupHash (and every ancestor of it) firm.
	FinalizeBlock(ctx context.Context, rollupHash common.Hash) error
	// GetCommitmentState fetches the engine's current soft/firm view.
	GetCommitmentState(ctx context.Context) (CommitmentState, error)
	Close() error
}

type grpcClient struct {
	conn *grpc.ClientConn
	api  astriaGrpc.ExecutionServiceClient
}

// Dial opens a gRPC connection to the rollup execution engine at addr.
func Dial(addr string) (Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial rollup execution engine at %s: %w", addr, err)
	}
	return &grpcClient{conn: conn, api: astriaGrpc.NewExecutionServiceClient(conn)}, nil
}

func (c *grpcClient) ExecuteBlock(ctx context.Context, parentHash common.Hash, txs []rollup.RollupTx, timestamp time.Time, sequencerHash *common.Hash) (rollup.RollupBlock, error) {
	req := &astriaPb.ExecuteBlockRequest{
		PrevBlockHash: parentHash.Bytes(),
		Transactions:  toRollupData(txs),
		Timestamp:     timestamppb.New(timestamp),
	}
	if sequencerHash != nil {
		req.SequencerBlockHash = sequencerHash.Bytes()
	}

	resp, err := c.api.ExecuteBlock(ctx, req)
	if err != nil {
		return rollup.RollupBlock{}, fmt.Errorf("ExecuteBlock: %w", err)
	}

	return rollup.RollupBlock{
		ParentHash: parentHash,
		Hash:       common.BytesToHash(resp.GetHash()),
		Height:     uint64(resp.GetNumber()),
	}, nil
}

func (c *grpcClient) FinalizeBlock(ctx context.Context, rollupHash common.Hash) error {
	state, err := c.GetCommitmentState(ctx)
	if err != nil {
		return fmt.Errorf("FinalizeBlock: fetching current commitment state: %w", err)
	}

	req := &astriaPb.UpdateCommitmentStateRequest{
		CommitmentState: &astriaPb.CommitmentState{
			Soft: &astriaPb.Block{Hash: state.SoftHash.Bytes(), Number: uint32(state.SoftNum)},
			Firm: &astriaPb.Block{Hash: rollupHash.Bytes()},
		},
	}
	if _, err := c.api.UpdateCommitmentState(ctx, req); err != nil {
		return fmt.Errorf("UpdateCommitmentState: %w", err)
	}
	return nil
}

func (c *grpcClient) GetCommitmentState(ctx context.Context) (CommitmentState, error) {
	resp, err := c.api.GetCommitmentState(ctx, &astriaPb.GetCommitmentStateRequest{})
	if err != nil {
		return CommitmentState{}, fmt.Errorf("GetCommitmentState: %w", err)
	}
	return CommitmentState{
		SoftHash: common.BytesToHash(resp.GetSoft().GetHash()),
		SoftNum:  uint64(resp.GetSoft().GetNumber()),
		FirmHash: common.BytesToHash(resp.GetFirm().GetHash()),
		FirmNum:  uint64(resp.GetFirm().GetNumber()),
	}, nil
}

func (c *grpcClient) Close() error { return c.conn.Close() }

func toRollupData(txs []rollup.RollupTx) []*sequencerblockv1.RollupData {
	out := make([]*sequencerblockv1.RollupData, 0, len(txs))
	for _, tx := range txs {
		out = append(out, &sequencerblockv1.RollupData{
			Value: &sequencerblockv1.RollupData_SequencedData{SequencedData: tx},
		})
	}
	return out
}
