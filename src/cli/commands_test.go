package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/storage"
	"github.com/Blackdeer1524/RelDB/src/types"
)

func setupFileStorage(t *testing.T) string {
	t.Helper()

	t.Setenv("RELDB_STORAGE", "file")
	t.Setenv("RELDB_DATA_DIR", t.TempDir())
	t.Setenv("RELDB_ENVIRONMENT", "prod")

	return filepath.Join(t.TempDir(), "missing.env")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExec_PersistsAcrossInvocations(t *testing.T) {
	envFile := setupFileStorage(t)

	out, err := run(t, "--env", envFile, "exec", `
		CREATE TABLE Foo (id INT);
		INSERT INTO Foo VALUES (1), (2);
		ALTER TABLE Foo ADD COLUMN amount INT DEFAULT 10;
	`)
	require.NoError(t, err)
	assert.Contains(t, out, "INSERT 2")
	assert.Contains(t, out, "ALTER_TABLE Foo")

	out, err = run(t, "--env", envFile, "exec", "SELECT id, amount FROM Foo")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"id | amount",
		"---+-------",
		"1  | 10",
		"2  | 10",
		"(2 rows)",
		"",
	}, "\n"), out)
}

func TestExec_ReportsFailure(t *testing.T) {
	envFile := setupFileStorage(t)

	_, err := run(t, "--env", envFile, "exec", "CREATE TABLE Foo (id INT)")
	require.NoError(t, err)

	out, err := run(t, "--env", envFile, "exec", "ALTER TABLE Foo ADD COLUMN x INT NOT NULL")
	require.ErrorIs(t, err, dberr.ErrDefaultValueRequired)
	assert.Contains(t, out, "error:")
}

func TestExec_FromFile(t *testing.T) {
	envFile := setupFileStorage(t)

	script := filepath.Join(t.TempDir(), "migration.sql")
	require.NoError(t, os.WriteFile(script, []byte(`
		CREATE TABLE Foo (id INT, name TEXT);
		ALTER TABLE Foo RENAME COLUMN name TO title;
		ALTER TABLE Foo RENAME TO Bar;
	`), 0o600))

	_, err := run(t, "--env", envFile, "exec", "-f", script)
	require.NoError(t, err)

	out, err := run(t, "--env", envFile, "describe", "Bar")
	require.NoError(t, err)

	var tables []tableYAML
	require.NoError(t, yaml.Unmarshal([]byte(out), &tables))
	require.Len(t, tables, 1)
	assert.Equal(t, "Bar", tables[0].Name)
	assert.Equal(t, []columnYAML{
		{Name: "id", Type: "INT", Nullable: true},
		{Name: "title", Type: "TEXT", Nullable: true},
	}, tables[0].Columns)
}

func TestDescribe_AllTables(t *testing.T) {
	envFile := setupFileStorage(t)

	_, err := run(t, "--env", envFile, "exec", `
		CREATE TABLE A (id INT PRIMARY KEY);
		CREATE TABLE B (n INT DEFAULT 5);
	`)
	require.NoError(t, err)

	out, err := run(t, "--env", envFile, "describe")
	require.NoError(t, err)

	var tables []tableYAML
	require.NoError(t, yaml.Unmarshal([]byte(out), &tables))
	require.Len(t, tables, 2)

	byName := map[string]tableYAML{}
	for _, tbl := range tables {
		byName[tbl.Name] = tbl
	}
	assert.True(t, byName["A"].Columns[0].Primary)
	assert.Equal(t, "5", byName["B"].Columns[0].Default)

	_, err = run(t, "--env", envFile, "describe", "Missing")
	require.ErrorIs(t, err, dberr.ErrTableNotFound)
}

func TestReadSQL(t *testing.T) {
	sql, err := readSQL(strings.NewReader("SELECT 1"), "-", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)

	sql, err = readSQL(nil, "", []string{"DROP TABLE Foo"})
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE Foo", sql)

	_, err = readSQL(nil, "x.sql", []string{"DROP TABLE Foo"})
	require.Error(t, err)

	_, err = readSQL(nil, "", nil)
	require.Error(t, err)
}

func TestPrinter_StylesOnlyInTTYMode(t *testing.T) {
	pl := []query.Payload{{
		Kind:    query.PayloadSelect,
		Columns: []string{"v"},
		Rows:    []storage.Row{{types.Null}},
	}}

	var plain bytes.Buffer
	printer{mode: ModePlain, w: &plain}.payloads(pl)
	assert.Equal(t, "v\n----\nNULL\n(1 rows)\n", plain.String())

	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, ModePlain, DetectMode(os.Stdout))
}
