package main

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/SamuelRCrider/callbridge/core"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file.json>",
	Short: "Run the call record validator on a JSON record",
	Long: `Validates a call record (caller_name, caller_phone, transcript, call_summary,
call_outcome, call_duration) the same way the webhook does before anything reaches
the CRM. Use "-" to read the record from stdin. Exits with status 2 when blocked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policyPath, _ := cmd.Flags().GetString("policy")
		asJSON, _ := cmd.Flags().GetBool("json")

		data, err := readFile(cmd.InOrStdin(), args[0])
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		var record map[string]any
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("record is not a JSON object: %w", err)
		}

		detector, err := loadDetector(policyPath)
		if err != nil {
			return err
		}
		result := core.NewValidator(detector).ValidateCallData(record)

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else {
			printFindings(result.Findings)
			pterm.Println()
			printVerdict(result.OK, result.Message)
			if result.OK {
				printRecord(result.CallRecord())
			}
		}

		if !result.OK {
			return exitCode(2)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("policy", "", "Threat policy YAML (default built-in catalog)")
	validateCmd.Flags().Bool("json", false, "Print the ValidationResult as JSON")
	rootCmd.AddCommand(validateCmd)
}

func printRecord(rec core.CallRecord) {
	data := [][]string{
		{"Field", "Value"},
		{core.FieldCallerName, rec.CallerName},
		{core.FieldCallerPhone, rec.CallerPhone},
		{core.FieldCallOutcome, rec.CallOutcome},
		{core.FieldCallDuration, fmt.Sprint(rec.CallDuration)},
		{core.FieldCallSummary, preview(rec.CallSummary)},
		{core.FieldTranscript, preview(rec.Transcript)},
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
