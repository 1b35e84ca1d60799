// Package raft replicates SQL statements through hashicorp/raft.
package raft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Jille/raft-grpc-leader-rpc/leaderhealth"
	transport "github.com/Jille/raft-grpc-transport"
	hraft "github.com/hashicorp/raft"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Blackdeer1524/RelDB/src"
	"github.com/Blackdeer1524/RelDB/src/pkg/common"
	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/query/ast"
	"github.com/Blackdeer1524/RelDB/src/query/translate"
	"github.com/Blackdeer1524/RelDB/src/storage"
)

const applyTimeout = 5 * time.Second

var ErrNotLeader = errors.New("node is not the raft leader")

type Node struct {
	id     string
	addr   string
	raft   *hraft.Raft
	fsm    *fsm
	grpc   *grpc.Server
	ticker atomic.Uint64

	logger src.Logger
}

// StartNode starts a raft node serving the grpc transport on addr. With
// bootstrap set, the node forms a single-server cluster.
func StartNode(
	id, addr string,
	bootstrap bool,
	newExecutor ExecutorFactory,
	logger src.Logger,
) (*Node, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	tr := transport.New(hraft.ServerAddress(addr), []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	})

	n, err := newNode(id, addr, bootstrap, tr.Transport(), newExecutor, logger, defaultConfig(id))
	if err != nil {
		return nil, errors.Join(err, lis.Close())
	}

	s := grpc.NewServer()
	tr.Register(s)
	leaderhealth.Setup(n.raft, s, []string{"reldb"})
	n.grpc = s

	go func() {
		err := s.Serve(lis)
		if err != nil {
			n.logger.Errorw("raft node failed to serve", zap.Error(err))
		}
	}()

	return n, nil
}

func defaultConfig(id string) *hraft.Config {
	cfg := hraft.DefaultConfig()
	cfg.LocalID = hraft.ServerID(id)
	cfg.LogOutput = io.Discard

	return cfg
}

func newNode(
	id, addr string,
	bootstrap bool,
	trans hraft.Transport,
	newExecutor ExecutorFactory,
	logger src.Logger,
	cfg *hraft.Config,
) (*Node, error) {
	f, err := newFSM(id, newExecutor, logger)
	if err != nil {
		return nil, err
	}

	logStore := hraft.NewInmemStore()
	stableStore := hraft.NewInmemStore()
	snapStore := hraft.NewInmemSnapshotStore()

	r, err := hraft.NewRaft(cfg, f, logStore, stableStore, snapStore, trans)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft node: %w", err)
	}

	if bootstrap {
		err := r.BootstrapCluster(hraft.Configuration{Servers: []hraft.Server{{
			ID:      hraft.ServerID(id),
			Address: hraft.ServerAddress(addr),
		}}}).Error()
		if err != nil && !errors.Is(err, hraft.ErrCantBootstrap) {
			return nil, errors.Join(fmt.Errorf("failed to bootstrap cluster: %w", err), r.Shutdown().Error())
		}
	}

	return &Node{
		id:     id,
		addr:   addr,
		raft:   r,
		fsm:    f,
		logger: logger,
	}, nil
}

// Execute runs read-only scripts on the local replica and replicates
// everything else through the leader's log.
func (n *Node) Execute(ctx context.Context, sql string) ([]query.Payload, error) {
	stmts, err := translate.Parse(sql)
	if err != nil {
		return nil, err
	}

	if readOnly(stmts) {
		return n.fsm.executor().Execute(ctx, sql)
	}

	if n.raft.State() != hraft.Leader {
		return nil, fmt.Errorf("%w: leader is %q", ErrNotLeader, n.leaderAddr())
	}

	cmd := command{
		action: ExecuteSQL,
		txnID:  common.TxnID(n.ticker.Add(1)),
		sql:    sql,
	}

	timeout := applyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	future := n.raft.Apply(cmd.encode(), timeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("raft apply failed: %w", err)
	}

	resp, ok := future.Response().(applyResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", future.Response())
	}

	return resp.Payloads, resp.Err
}

// Describe and Tables read the local replica, which may lag the leader.
func (n *Node) Describe(ctx context.Context, name string) (storage.TableHandle, error) {
	return n.fsm.executor().Describe(ctx, name)
}

func (n *Node) Tables(ctx context.Context) ([]string, error) {
	return n.fsm.executor().Tables(ctx)
}

func readOnly(stmts []ast.Statement) bool {
	for _, stmt := range stmts {
		if _, ok := stmt.(ast.Select); !ok {
			return false
		}
	}
	return true
}

func (n *Node) leaderAddr() string {
	addr, _ := n.raft.LeaderWithID()
	return string(addr)
}

func (n *Node) IsLeader() bool {
	return n.raft.State() == hraft.Leader
}

// Join adds a voter to the cluster. Must be called on the leader.
func (n *Node) Join(id, addr string) error {
	err := n.raft.AddVoter(hraft.ServerID(id), hraft.ServerAddress(addr), 0, applyTimeout).Error()
	if err != nil {
		return fmt.Errorf("failed to add voter %s: %w", id, err)
	}

	return nil
}

func (n *Node) Close() {
	if err := n.raft.Shutdown().Error(); err != nil {
		n.logger.Errorw("raft node failed to close raft", zap.Error(err))
	}
	if n.grpc != nil {
		n.grpc.GracefulStop()
	}
	n.logger.Infow("raft node gracefully stopped", zap.String("address", n.addr))
}
