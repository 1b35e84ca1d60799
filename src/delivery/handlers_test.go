package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/storage/memstore"
	"github.com/Blackdeer1524/RelDB/src/txns"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	exec := query.New(memstore.New(), txns.NewTableLocker(), nil, 0, zap.NewNop().Sugar())
	srv := httptest.NewServer(NewRouter(&APIHandler{Node: exec, Logger: zap.NewNop().Sugar()}))
	t.Cleanup(srv.Close)

	return srv
}

func postQuery(t *testing.T, srv *httptest.Server, sql string) (int, map[string]any) {
	t.Helper()

	body, err := json.Marshal(queryRequest{SQL: sql})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/query", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp.StatusCode, out
}

func TestAPI_QueryFlow(t *testing.T) {
	srv := setupServer(t)

	status, _ := postQuery(t, srv, "CREATE TABLE Foo (id INT, name TEXT); INSERT INTO Foo VALUES (1, 'a'), (2, NULL);")
	require.Equal(t, http.StatusOK, status)

	status, _ = postQuery(t, srv, "ALTER TABLE Foo ADD COLUMN amount INT DEFAULT 10")
	require.Equal(t, http.StatusOK, status)

	status, out := postQuery(t, srv, "SELECT * FROM Foo")
	require.Equal(t, http.StatusOK, status)

	results := out["results"].([]any)
	require.Len(t, results, 1)
	res := results[0].(map[string]any)
	assert.Equal(t, "SELECT", res["kind"])
	assert.Equal(t, []any{"id", "name", "amount"}, res["columns"])
	assert.Equal(t, []any{
		[]any{float64(1), "a", float64(10)},
		[]any{float64(2), nil, float64(10)},
	}, res["rows"])
}

func TestAPI_QueryErrors(t *testing.T) {
	srv := setupServer(t)

	status, _ := postQuery(t, srv, "CREATE TABLE Foo (id INT, name TEXT, new_id INT)")
	require.Equal(t, http.StatusOK, status)

	tests := []struct {
		sql    string
		status int
		code   string
	}{
		{"ALTER TABLE Foo ADD COLUMN amount INTEGER NOT NULL", http.StatusBadRequest, "DefaultValueRequired"},
		{"ALTER TABLE Foo RENAME COLUMN name TO new_id", http.StatusBadRequest, "AlreadyExistingColumn"},
		{"ALTER TABLE Nope RENAME TO Bar", http.StatusNotFound, "TableNotFound"},
		{"CREATE TABLE Foo (id INT)", http.StatusConflict, "AlreadyExistingTable"},
		{"SELEC * FROM Foo", http.StatusBadRequest, "SyntaxError"},
	}

	for _, tt := range tests {
		status, out := postQuery(t, srv, tt.sql)
		assert.Equal(t, tt.status, status, tt.sql)
		assert.Equal(t, tt.code, out["code"], tt.sql)
	}
}

func TestAPI_Tables(t *testing.T) {
	srv := setupServer(t)

	status, _ := postQuery(t, srv, "CREATE TABLE Foo (id INT PRIMARY KEY, amount INT DEFAULT 10)")
	require.Equal(t, http.StatusOK, status)

	resp, err := http.Get(srv.URL + "/tables/Foo")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var table struct {
		Name    string           `json:"name"`
		Version uint64           `json:"version"`
		Schema  []map[string]any `json:"schema"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&table))
	assert.Equal(t, "Foo", table.Name)
	require.Len(t, table.Schema, 2)
	assert.Equal(t, "id", table.Schema[0]["name"])
	assert.Equal(t, true, table.Schema[0]["primary"])
	assert.Equal(t, "10", table.Schema[1]["default"])

	missing, err := http.Get(srv.URL + "/tables/Nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	list, err := http.Get(srv.URL + "/tables")
	require.NoError(t, err)
	defer list.Body.Close()

	var names []string
	require.NoError(t, json.NewDecoder(list.Body).Decode(&names))
	assert.Equal(t, []string{"Foo"}, names)
}

func TestAPI_JoinWithoutRaft(t *testing.T) {
	srv := setupServer(t)

	resp, err := http.Post(srv.URL+"/cluster/join", "application/json", strings.NewReader(`{"id":"n2","addr":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
