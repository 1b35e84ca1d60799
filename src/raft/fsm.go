package raft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	hraft "github.com/hashicorp/raft"

	"github.com/Blackdeer1524/RelDB/src"
	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/storage"
)

type Executor interface {
	Execute(ctx context.Context, sql string) ([]query.Payload, error)
	Describe(ctx context.Context, name string) (storage.TableHandle, error)
	Tables(ctx context.Context) ([]string, error)
}

// ExecutorFactory builds an executor over empty storage. Restore uses it to
// rebuild state from a snapshot.
type ExecutorFactory func() (Executor, error)

type applyResult struct {
	Payloads []query.Payload
	Err      error
}

var _ hraft.FSM = &fsm{}

// fsm applies replicated SQL to a local executor. Its snapshot is the list of
// applied statements; restoring replays them on fresh storage.
type fsm struct {
	nodeID      string
	newExecutor ExecutorFactory
	log         src.Logger

	mu      sync.RWMutex
	exec    Executor
	history []string
}

func newFSM(nodeID string, newExecutor ExecutorFactory, log src.Logger) (*fsm, error) {
	exec, err := newExecutor()
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	return &fsm{
		nodeID:      nodeID,
		newExecutor: newExecutor,
		log:         log,
		exec:        exec,
	}, nil
}

func (f *fsm) executor() Executor {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.exec
}

func (f *fsm) Apply(l *hraft.Log) any {
	cmd, err := decodeCommand(l.Data)
	if err != nil {
		f.log.Errorw("can't apply raft log entry", "node_id", f.nodeID, "index", l.Index, "error", err)
		return applyResult{Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// failed statements are recorded too: replay must reproduce partial
	// multi-statement effects
	f.history = append(f.history, cmd.sql)
	payloads, err := f.exec.Execute(context.Background(), cmd.sql)

	f.log.Debugw("applied raft log entry",
		"node_id", f.nodeID,
		"action", cmd.action.String(),
		"txn_id", cmd.txnID,
		"index", l.Index,
	)

	return applyResult{Payloads: payloads, Err: err}
}

func (f *fsm) Snapshot() (hraft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	history := make([]string, len(f.history))
	copy(history, f.history)

	return &snapshot{history: history}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) (err error) {
	defer func() {
		err = errors.Join(err, rc.Close())
	}()

	var history []string
	if err := json.NewDecoder(rc).Decode(&history); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	exec, err := f.newExecutor()
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	for _, sql := range history {
		// errors are part of the recorded history
		_, _ = exec.Execute(context.Background(), sql)
	}

	f.mu.Lock()
	f.exec = exec
	f.history = history
	f.mu.Unlock()

	f.log.Infow("restored from snapshot", "node_id", f.nodeID, "statements", len(history))

	return nil
}

type snapshot struct {
	history []string
}

func (s *snapshot) Persist(sink hraft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.history); err != nil {
		return errors.Join(fmt.Errorf("failed to persist snapshot: %w", err), sink.Cancel())
	}

	return sink.Close()
}

func (s *snapshot) Release() {}
