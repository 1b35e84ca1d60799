package delivery

import (
	"context"

	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/storage"
)

// Node is implemented by both the local executor and the raft node.
type Node interface {
	Execute(ctx context.Context, sql string) ([]query.Payload, error)
	Describe(ctx context.Context, name string) (storage.TableHandle, error)
	Tables(ctx context.Context) ([]string, error)
}

// Joiner is implemented by replicated nodes that accept new voters.
type Joiner interface {
	Join(id, addr string) error
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type joinRequest struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

type resultResponse struct {
	Kind     query.PayloadKind `json:"kind"`
	Table    string            `json:"table,omitempty"`
	Affected int               `json:"affected,omitempty"`
	Columns  []string          `json:"columns,omitempty"`
	Rows     [][]any           `json:"rows,omitempty"`
}

type queryResponse struct {
	Results []resultResponse `json:"results"`
}

type errorResponse struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Results []resultResponse `json:"results,omitempty"`
}

type tableResponse struct {
	Name    string          `json:"name"`
	Version uint64          `json:"version"`
	Schema  *storage.Schema `json:"schema"`
}
