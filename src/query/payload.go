package query

import "github.com/Blackdeer1524/RelDB/src/storage"

type PayloadKind string

const (
	PayloadCreate     PayloadKind = "CREATE"
	PayloadDropTable  PayloadKind = "DROP_TABLE"
	PayloadInsert     PayloadKind = "INSERT"
	PayloadSelect     PayloadKind = "SELECT"
	PayloadAlterTable PayloadKind = "ALTER_TABLE"
)

// Payload is the result of one statement. Affected is set for INSERT,
// Columns and Rows for SELECT.
type Payload struct {
	Kind     PayloadKind   `json:"kind"`
	Table    string        `json:"table,omitempty"`
	Affected int           `json:"affected,omitempty"`
	Columns  []string      `json:"columns,omitempty"`
	Rows     []storage.Row `json:"rows,omitempty"`
}
