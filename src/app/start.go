package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Blackdeer1524/RelDB/src"
	"github.com/Blackdeer1524/RelDB/src/delivery"
	"github.com/Blackdeer1524/RelDB/src/pkg/utils"
	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/raft"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/storage/memstore"
)

const CloseTimeout = 15 * time.Second

type APIEntrypoint struct {
	ConfigPath string
	Env        envVars

	engine storage.Engine
	exec   *query.Executor
	pool   *ants.Pool
	node   *raft.Node
	s      *delivery.Server
	log    src.Logger
}

func NewLogger(env Environment) src.Logger {
	if env == EnvDev {
		return utils.Must(zap.NewDevelopment()).Sugar()
	}
	return utils.Must(zap.NewProduction()).Sugar()
}

func (e *APIEntrypoint) Init(ctx context.Context) (err error) {
	e.Env = mustLoadEnv(e.ConfigPath)
	e.log = NewLogger(e.Env.Environment)

	defer func() {
		if err != nil {
			err = errors.Join(err, e.Close())
		}
	}()

	if e.pool, err = NewRewritePool(e.Env); err != nil {
		return err
	}

	var node delivery.Node
	if e.Env.RaftID != "" {
		e.node, err = raft.StartNode(e.Env.RaftID, e.Env.RaftAddr, e.Env.RaftBootstrap, e.replicaExecutor, e.log)
		if err != nil {
			return fmt.Errorf("failed to start raft node: %w", err)
		}
		node = e.node
	} else {
		if e.engine, err = OpenEngine(ctx, e.Env, e.log); err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		e.exec = NewExecutor(e.engine, e.pool, e.Env, e.log)
		node = e.exec
	}

	router := delivery.NewRouter(&delivery.APIHandler{Node: node, Logger: e.log})
	e.s = delivery.NewServer(e.Env.ServerHost, e.Env.ServerPort, router, e.log)

	return nil
}

// replicaExecutor builds the executor a raft replica applies its log to.
func (e *APIEntrypoint) replicaExecutor() (raft.Executor, error) {
	return NewExecutor(memstore.New(), e.pool, e.Env, e.log), nil
}

// Run serves until the server fails or ctx is cancelled.
func (e *APIEntrypoint) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return e.s.Run()
	})
	g.Go(func() error {
		<-gctx.Done()

		closeCtx, cancel := context.WithTimeout(context.Background(), CloseTimeout)
		defer cancel()

		return e.s.Close(closeCtx)
	})

	return g.Wait()
}

func (e *APIEntrypoint) Close() (err error) {
	if e.node != nil {
		e.node.Close()
		e.node = nil
	}

	if e.exec != nil {
		if !e.exec.Idle() && e.log != nil {
			e.log.Warnw("closing storage while statements still hold table locks")
		}
		e.exec = nil
	}

	if e.engine != nil {
		err = errors.Join(err, e.engine.Close())
		e.engine = nil
	}

	if e.pool != nil {
		e.pool.Release()
		e.pool = nil
	}

	if e.log != nil {
		if err != nil {
			e.log.Errorw("failed to close entrypoint", "error", err)
		}

		// syncing stderr fails on some platforms
		_ = e.log.Sync()
	}

	return
}
