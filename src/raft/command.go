package raft

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Blackdeer1524/RelDB/src/pkg/common"
)

type queryAction uint8

const (
	ExecuteSQL queryAction = iota + 1
)

var ErrMalformedCommand = errors.New("malformed raft command")

func (a queryAction) String() string {
	switch a {
	case ExecuteSQL:
		return "EXECUTE_SQL"
	default:
		return fmt.Sprintf("queryAction(%d)", uint8(a))
	}
}

func queryActionFromString(s string) (queryAction, error) {
	switch s {
	case ExecuteSQL.String():
		return ExecuteSQL, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

// command is one replicated log entry: "<action>\n<txn id>\n<sql>".
type command struct {
	action queryAction
	txnID  common.TxnID
	sql    string
}

func (c command) encode() []byte {
	return []byte(fmt.Sprintf("%s\n%d\n%s", c.action, c.txnID, c.sql))
}

func decodeCommand(data []byte) (command, error) {
	fields := strings.SplitN(string(data), "\n", 3)
	if len(fields) < 3 {
		return command{}, ErrMalformedCommand
	}

	action, err := queryActionFromString(fields[0])
	if err != nil {
		return command{}, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
	}

	txnID, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return command{}, fmt.Errorf("%w: bad txn id: %w", ErrMalformedCommand, err)
	}

	return command{action: action, txnID: common.TxnID(txnID), sql: fields[2]}, nil
}
