package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SamuelRCrider/callbridge/store"
	"github.com/SamuelRCrider/callbridge/utils"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recently blocked call records from the ledger",
	Long: `Reads the security events the ledger recorded for blocked calls, newest first.
The ledger path comes from --db or from storage.sqlite_path in the config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		if dbPath == "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dbPath = cfg.Storage.SQLitePath
		}
		if dbPath == "" {
			return errors.New("no ledger configured: set storage.sqlite_path or pass --db")
		}

		ledger, err := store.Open(dbPath, zerolog.Nop())
		if err != nil {
			return err
		}
		defer ledger.Close()

		events, err := ledger.RecentSecurityEvents(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if asJSON {
			if events == nil {
				events = []store.SecurityEvent{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}
		printEvents(events)
		return nil
	},
}

func init() {
	eventsCmd.Flags().String("db", "", "SQLite ledger path (default storage.sqlite_path)")
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsCmd.Flags().Bool("json", false, "Print the events as JSON")
	rootCmd.AddCommand(eventsCmd)
}

func printEvents(events []store.SecurityEvent) {
	if len(events) == 0 {
		pterm.Info.Println("No blocked records.")
		return
	}

	data := [][]string{{"ID", "Time", "Conversation", "Field", "High", "Message"}}
	for _, ev := range events {
		data = append(data, []string{
			fmt.Sprint(ev.ID),
			ev.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			ev.ConversationID,
			pterm.FgCyan.Sprint(ev.Field),
			fmt.Sprint(utils.CountBySeverity(ev.Findings)[utils.SeverityHigh]),
			preview(ev.Message),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
