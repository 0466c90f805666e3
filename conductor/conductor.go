// Package conductor wires together the Executor, the sequencer and
// Celestia readers, and the rollup RPC client into one supervised
// process (spec.md §4.1), following the task-spawn and shutdown
// protocol of the original Rust Conductor (see
// original_source/.../conductor.rs).
package conductor

import (
	"context"
	"fmt"
	"sync"
	"time"

	cometbfthttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MuhtasimTanmoy/conductor/celestia"
	"github.com/MuhtasimTanmoy/conductor/clientpool"
	"github.com/MuhtasimTanmoy/conductor/config"
	"github.com/MuhtasimTanmoy/conductor/deposit"
	"github.com/MuhtasimTanmoy/conductor/executor"
	"github.com/MuhtasimTanmoy/conductor/metrics"
	"github.com/MuhtasimTanmoy/conductor/retry"
	"github.com/MuhtasimTanmoy/conductor/rollup"
	"github.com/MuhtasimTanmoy/conductor/rolluprpc"
	"github.com/MuhtasimTanmoy/conductor/sequencer"
	"github.com/MuhtasimTanmoy/conductor/verifier"
)

// Task names, used both as goroutine labels and as log fields.
const (
	taskExecutor  = "executor"
	taskSequencer = "sequencer"
	taskCelestia  = "celestia"
)

// taskResult is what a supervised task reports when it exits.
type taskResult struct {
	name string
	err  error
}

// Conductor supervises the long-running tasks that make up the
// rollup conductor.
type Conductor struct {
	log log.Logger

	pool *clientpool.Pool
	rpc  rolluprpc.Client

	shutdownChannels map[string]chan struct{}
	results          chan taskResult
	running          int

	// ctx is handed to every spawned task and canceled by drain on a
	// timeout, so a task that ignores its shutdown channel is still
	// forced to observe ctx.Done() (spec.md §4.1 step 4: "abort any
	// still-running task").
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// New constructs every component named in cfg and starts each task,
// returning once all of them are running. It mirrors spec.md §4.1's
// component construction order: Executor, then ClientPool, then the
// readers enabled by cfg.ExecutionCommitLevel.
func New(logger log.Logger, cfg config.Config, reg prometheus.Registerer) (*Conductor, error) {
	var m metrics.Metrics = metrics.Noop{}
	if reg != nil {
		m = metrics.New(reg)
	}

	rpc, err := rolluprpc.Dial(cfg.ExecutionRPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rollup execution engine: %w", err)
	}

	var hook executor.DepositHook
	if cfg.EnableOptimism {
		ethClient, err := ethclient.Dial(cfg.EthereumL1URL)
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("failed to dial ethereum l1: %w", err)
		}
		hook = deposit.New(logger.New("component", "deposit"), ethClient,
			common.BytesToAddress(cfg.OptimismPortalContractAddress[:]), cfg.InitialEthereumL1BlockHeight)
	}

	exec := executor.New(logger.New("component", taskExecutor), rpc, cfg.ExecutionCommitLevel, hook, m)

	pool := clientpool.New(cfg.SequencerURL, clientpool.CometBFTFactory, 4)

	taskCtx, cancel := context.WithCancel(context.Background())
	c := &Conductor{
		log:              logger,
		pool:             pool,
		rpc:              rpc,
		shutdownChannels: make(map[string]chan struct{}),
		results:          make(chan taskResult, 3),
		ctx:              taskCtx,
		cancel:           cancel,
	}

	if !cfg.ExecutionCommitLevel.IsFirmOnly() {
		reader := sequencer.New(logger.New("component", taskSequencer), pool, cfg.RollupID, exec, exec)
		c.spawn(taskSequencer, reader.Run)
	}

	if !cfg.ExecutionCommitLevel.IsSoftOnly() {
		daReader, err := c.buildCelestiaReader(context.Background(), logger, cfg, exec, exec, m)
		if err != nil {
			c.shutdownAll()
			pool.Close()
			rpc.Close()
			return nil, fmt.Errorf("failed constructing data availability reader: %w", err)
		}
		c.spawn(taskCelestia, daReader.Run)
	}

	c.spawn(taskExecutor, exec.Run)

	return c, nil
}

// buildCelestiaReader derives the sequencer namespace from the
// pool (spec.md §4.5: "fetched once, from any live sequencer client,
// at startup") and constructs the DA reader around it.
func (c *Conductor) buildCelestiaReader(ctx context.Context, logger log.Logger, cfg config.Config, sink celestia.BlockSink, state celestia.StateSource, m metrics.Metrics) (*celestia.Reader, error) {
	var headerHash []byte
	err := retry.Do(ctx, retry.NamespaceBootstrap(), nil, func(ctx context.Context) error {
		raw, err := c.pool.Get(ctx)
		if err != nil {
			return err
		}
		defer c.pool.Put(raw)

		client, ok := raw.(*cometbfthttp.HTTP)
		if !ok {
			return fmt.Errorf("unexpected sequencer client type %T", raw)
		}
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		headerHash = []byte(status.SyncInfo.LatestBlockHash)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get a sequencer client from the pool: %w", err)
	}

	sequencerNamespace := rollup.NamespaceV0FromCometBFTHeaderHash(headerHash)

	daClient, err := celestia.NewClient(ctx, cfg, sequencerNamespace)
	if err != nil {
		return nil, err
	}

	rollupNamespace := rollup.RollupNamespace(cfg.RollupID)
	v := verifier.New(rollupNamespace.Bytes())

	return celestia.New(
		logger.New("component", taskCelestia),
		daClient,
		v,
		rollupNamespace,
		cfg.ExecutionCommitLevel.IsFirmOnly(),
		cfg.CelestiaStartHeight,
		sink,
		state,
		m,
	), nil
}

// spawn starts fn in its own goroutine, registering name's shutdown
// channel and reporting its exit on c.results.
func (c *Conductor) spawn(name string, fn func(ctx context.Context, shutdown <-chan struct{}) error) {
	shutdown := make(chan struct{})
	c.shutdownChannels[name] = shutdown
	c.running++
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := fn(c.ctx, shutdown)
		c.results <- taskResult{name: name, err: err}
	}()
}

// Run blocks until any task exits (with or without an error) or a stop
// signal is observed, then shuts the conductor down cleanly (spec.md
// §4.1's supervisor loop).
func (c *Conductor) Run(ctx context.Context, stop <-chan struct{}, reload <-chan struct{}) error {
	remaining := c.running
	for remaining > 0 {
		select {
		case <-stop:
			c.log.Info("shutting down conductor")
			c.shutdownAll()
			c.drain(5 * time.Second)
			return nil

		case <-reload:
			c.log.Info("reloading is currently not implemented")

		case res := <-c.results:
			remaining--
			if res.err != nil {
				c.log.Error("task exited with error; shutting down", "task", res.name, "err", res.err)
			} else {
				c.log.Error("task exited unexpectedly; shutting down", "task", res.name)
			}
			c.shutdownAll()
			c.drain(5 * time.Second)
			return res.err
		}
	}
	return nil
}

// shutdownAll signals every running task's shutdown channel and closes
// the client pool (spec.md §4.1: "signal every shutdown channel;
// close the client pool").
func (c *Conductor) shutdownAll() {
	for name, ch := range c.shutdownChannels {
		select {
		case <-ch:
			// already closed
		default:
			close(ch)
		}
		delete(c.shutdownChannels, name)
	}
	c.pool.Close()
	c.rpc.Close()
}

// drain waits up to timeout for every spawned task to actually return,
// logging a warning (rather than blocking forever) for stragglers.
func (c *Conductor) drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.log.Info("all tasks shut down cleanly")
	case <-time.After(timeout):
		c.log.Warn("timed out waiting for tasks to shut down; aborting stragglers")
		c.cancel()
	}
}
