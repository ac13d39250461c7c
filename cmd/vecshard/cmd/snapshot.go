package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecshard/snapshot"
)

var (
	snapshotStore string
	snapshotName  string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy the WAL to and from a blob store",
	Long: `Snapshots hold every WAL entry of a shard. Restoring one into an empty
directory and opening the shard replays it to the same state.

Store URLs:
  file:///var/backups/shards
  s3://bucket/prefix                 (AWS default credential chain)
  minio://host:9000/bucket/prefix    (MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_SECURE)`,
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write the WAL of --dir to the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(ctx, snapshotStore)
		if err != nil {
			return err
		}
		log, err := openLog(cfg)
		if err != nil {
			return err
		}
		defer log.Close()

		info, err := snapshot.Create(ctx, store, snapshotName, log, snapshot.WithRateLimit(cfg.Snapshot.RateLimit))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: %d entries (ids %d-%d, %d bytes)\n",
			info.Name, info.Entries, info.FirstID, info.LastID, info.Bytes)
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a snapshot into the empty WAL of --dir",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(ctx, snapshotStore)
		if err != nil {
			return err
		}
		log, err := openLog(cfg)
		if err != nil {
			return err
		}
		defer log.Close()

		info, err := snapshot.Restore(ctx, store, snapshotName, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s: %d entries into %s\n", info.Name, info.Entries, cfg.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotCreateCmd, snapshotRestoreCmd)

	snapshotCmd.PersistentFlags().StringVar(&snapshotStore, "store", "", "Blob store URL")
	snapshotCmd.PersistentFlags().StringVar(&snapshotName, "name", "", "Snapshot name")
	_ = snapshotCmd.MarkPersistentFlagRequired("store")
	_ = snapshotCmd.MarkPersistentFlagRequired("name")
}
