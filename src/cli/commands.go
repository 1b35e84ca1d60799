package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Blackdeer1524/RelDB/src/app"
	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/storage"
)

type rootOptions struct {
	envFile string
	plain   bool
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "reldb",
		Short:         "Embeddable relational engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "path to a dotenv file with RELDB_* variables")
	root.PersistentFlags().BoolVar(&opts.plain, "plain", false, "disable styled output")

	root.AddCommand(serveCmd(opts), execCmd(opts), describeCmd(opts))

	return root
}

func (o *rootOptions) printer(cmd *cobra.Command) printer {
	mode := ModePlain
	if f, ok := cmd.OutOrStdout().(*os.File); ok && !o.plain {
		mode = DetectMode(f)
	}
	return printer{mode: mode, w: cmd.OutOrStdout()}
}

// withExecutor opens the configured storage for the duration of fn.
func (o *rootOptions) withExecutor(ctx context.Context, fn func(*query.Executor, storage.Engine) error) (err error) {
	env, err := app.LoadEnv(o.envFile)
	if err != nil {
		return err
	}

	log := app.NewLogger(app.EnvProd)
	defer func() {
		_ = log.Sync()
	}()

	se, err := app.OpenEngine(ctx, env, log)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, se.Close())
	}()

	pool, err := app.NewRewritePool(env)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Release()
	}

	return fn(app.NewExecutor(se, pool, env, log), se)
}

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e := &app.APIEntrypoint{ConfigPath: opts.envFile}
			if err := e.Init(ctx); err != nil {
				return err
			}

			return errors.Join(e.Run(ctx), e.Close())
		},
	}
}

func execCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "exec [sql]",
		Short: "Execute SQL against the configured storage",
		Example: `  reldb exec "ALTER TABLE Foo ADD COLUMN amount INT DEFAULT 10"
  reldb exec -f migration.sql
  cat migration.sql | reldb exec -f -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}

			p := opts.printer(cmd)
			return opts.withExecutor(cmd.Context(), func(exec *query.Executor, _ storage.Engine) error {
				payloads, err := exec.Execute(cmd.Context(), sql)
				p.payloads(payloads)
				if err != nil {
					p.errorf(err)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read SQL from a file, - for stdin")

	return cmd
}

func readSQL(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", errors.New("pass either an SQL argument or --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(b), nil
	}

	return "", errors.New("no SQL given")
}

type columnYAML struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
	Default  string `yaml:"default,omitempty"`
	Unique   bool   `yaml:"unique,omitempty"`
	Primary  bool   `yaml:"primary_key,omitempty"`
}

type tableYAML struct {
	Name    string       `yaml:"name"`
	Version uint64       `yaml:"version"`
	Columns []columnYAML `yaml:"columns"`
}

func describeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [table...]",
		Short: "Print table schemas as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withExecutor(cmd.Context(), func(exec *query.Executor, _ storage.Engine) error {
				names := args
				if len(names) == 0 {
					var err error
					if names, err = exec.Tables(cmd.Context()); err != nil {
						return err
					}
				}

				tables := make([]tableYAML, 0, len(names))
				for _, name := range names {
					h, err := exec.Describe(cmd.Context(), name)
					if err != nil {
						return err
					}
					tables = append(tables, toTableYAML(h))
				}

				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(tables); err != nil {
					return fmt.Errorf("failed to encode schema: %w", err)
				}
				return enc.Close()
			})
		},
	}
}

func toTableYAML(h storage.TableHandle) tableYAML {
	cols := h.Schema.Columns()
	out := tableYAML{Name: h.Name, Version: h.Version, Columns: make([]columnYAML, len(cols))}

	for i, c := range cols {
		out.Columns[i] = columnYAML{
			Name:     c.Name,
			Type:     c.DataType.String(),
			Nullable: c.Nullable,
			Unique:   c.Unique != nil,
			Primary:  c.Unique != nil && c.Unique.IsPrimary,
		}
		if c.Default != nil {
			out.Columns[i].Default = c.Default.String()
		}
	}

	return out
}
