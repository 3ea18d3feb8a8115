package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adrata/record-sync/internal/cache"
	"github.com/adrata/record-sync/internal/model"
)

var (
	cacheWorkspace  string
	cacheCollection string
	cacheRecordID   string
	cacheKind       string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache maintenance commands",
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired entries from the persistent cache tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		a.caches.PurgeExpired(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "sweep complete")
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Invalidate cached entries for one record across all tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		workspace := cacheWorkspace
		if workspace == "" {
			workspace = cfg.Workspace
		}

		a.caches.Invalidate(cmd.Context(), cache.Invalidation{
			Kind:           model.EntityKind(cacheKind),
			RecordID:       cacheRecordID,
			WorkspaceID:    workspace,
			Collection:     model.Collection(cacheCollection),
			CollectionWide: true,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s in %s\n", cacheRecordID, workspace)
		return nil
	},
}

func init() {
	cacheInvalidateCmd.Flags().StringVar(&cacheWorkspace, "workspace", "", "workspace id (default from config)")
	cacheInvalidateCmd.Flags().StringVar(&cacheCollection, "collection", "leads", "collection the record belongs to")
	cacheInvalidateCmd.Flags().StringVar(&cacheRecordID, "record", "", "record id")
	cacheInvalidateCmd.Flags().StringVar(&cacheKind, "kind", "person", "entity kind (person|company|action)")
	cacheInvalidateCmd.MarkFlagRequired("record")
	cacheCmd.AddCommand(cacheSweepCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
