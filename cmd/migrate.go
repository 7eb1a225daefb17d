package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	coreconfig "github.com/AzielCF/az-wrap/core/config"
	domainMessage "github.com/AzielCF/az-wrap/domains/message"
	"github.com/AzielCF/az-wrap/infrastructure/chatstorage"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the chat store schema and optionally seed it with messages",
	Long:  `Creates the message tables of the configured chat store. With --seed, messages from a JSON array are saved so albums and replies can be rendered from them.`,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().String("seed", "", "JSON file with an array of messages to import")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	store := coreconfig.Global.Database.ChatStore
	repo, err := chatstorage.GetOrInitRepository(store)
	if err != nil {
		return err
	}
	defer func() {
		if err := chatstorage.CloseRepository(store); err != nil {
			logrus.Warnf("[MIGRATION] %v", err)
		}
	}()

	ctx := context.Background()
	if seed, _ := cmd.Flags().GetString("seed"); seed != "" {
		n, err := seedMessages(ctx, repo, seed)
		if err != nil {
			return err
		}
		logrus.Infof("[MIGRATION] imported %s messages from %s", humanize.Comma(int64(n)), seed)
	}

	count, err := repo.CountMessages(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "chat store %q ready with %s messages\n", store, humanize.Comma(count))
	return nil
}

func seedMessages(ctx context.Context, repo domainMessage.IGroupedStorage, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	var messages []domainMessage.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, m := range messages {
		if m.ID == 0 {
			return i, fmt.Errorf("message %d in %s has no id", i, path)
		}
		if err := repo.SaveMessage(ctx, m); err != nil {
			return i, err
		}
	}
	return len(messages), nil
}
