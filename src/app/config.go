package app

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Blackdeer1524/RelDB/src/pkg/utils"
)

const envPrefix = "RELDB"

type Environment string

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"
)

type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageFile   StorageKind = "file"
	StorageSQLite StorageKind = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type envVars struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"dev"`
	ServerHost  string      `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	ServerPort  int         `envconfig:"SERVER_PORT" default:"8080"`

	Storage StorageKind `envconfig:"STORAGE" default:"memory"`
	DataDir string      `envconfig:"DATA_DIR" default:"./data"`

	RewriteWorkers int `envconfig:"REWRITE_WORKERS" default:"4"`
	RewriteChunk   int `envconfig:"REWRITE_CHUNK" default:"1024"`

	RaftID        string `envconfig:"RAFT_ID"`
	RaftAddr      string `envconfig:"RAFT_ADDR"`
	RaftBootstrap bool   `envconfig:"RAFT_BOOTSTRAP"`
}

// LoadEnv reads RELDB_* variables. Variables from dotenvPath fill in what
// the process environment does not set; a missing file is not an error.
func LoadEnv(dotenvPath string) (envVars, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return envVars{}, fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	var env envVars
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return envVars{}, fmt.Errorf("failed to process env: %w", err)
	}

	if err := env.validate(); err != nil {
		return envVars{}, err
	}

	return env, nil
}

func mustLoadEnv(dotenvPath string) envVars {
	return utils.Must(LoadEnv(dotenvPath))
}

func (e envVars) validate() error {
	switch e.Environment {
	case EnvDev, EnvProd:
	default:
		return fmt.Errorf("%w: unknown environment %q", ErrInvalidConfig, e.Environment)
	}

	switch e.Storage {
	case StorageMemory, StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, e.Storage)
	}

	if e.RewriteWorkers < 0 || e.RewriteChunk <= 0 {
		return fmt.Errorf("%w: rewrite workers must be >= 0 and chunk > 0", ErrInvalidConfig)
	}

	if e.RaftID != "" {
		if e.RaftAddr == "" {
			return fmt.Errorf("%w: RAFT_ADDR is required with RAFT_ID", ErrInvalidConfig)
		}
		// replicas rebuild state by replaying the raft log onto empty storage
		if e.Storage != StorageMemory {
			return fmt.Errorf("%w: raft replication requires memory storage", ErrInvalidConfig)
		}
	}

	return nil
}
