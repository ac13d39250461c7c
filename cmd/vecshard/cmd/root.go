package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecshard"
	"github.com/hupe1980/vecshard/config"
	"github.com/hupe1980/vecshard/wal"
)

var (
	// configPath is the path to the YAML config file
	configPath string
	// dataDir overrides the shard directory from the config
	dataDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vecshard",
	Short: "Operate on vecshard shard directories",
	Long: `vecshard inspects and backs up the write-ahead log of a vector shard.

Examples:
  # Print every operation in the WAL
  vecshard wal inspect --dir ./data

  # Copy the WAL to S3
  vecshard snapshot create --dir ./data --store s3://backups/shards --name shard-0

  # Restore it into an empty directory
  vecshard snapshot restore --dir ./restored --store s3://backups/shards --name shard-0`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "dir", "d", "", "Shard directory (overrides the config)")
}

// loadConfig reads --config if given and applies --dir.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
	}
	if dataDir != "" {
		cfg.Dir = dataDir
	}
	return cfg, nil
}

// openLog opens the shard's WAL as configured. Vectors are not needed.
func openLog(cfg config.Config) (wal.Log, error) {
	durability, err := wal.ParseDurability(cfg.WAL.Durability)
	if err != nil {
		return nil, err
	}
	return vecshard.OpenLog(cfg.Dir,
		vecshard.WithWALBackend(vecshard.WALBackend(cfg.WAL.Backend)),
		vecshard.WithDurability(durability),
	)
}
