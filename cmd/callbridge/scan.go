package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/SamuelRCrider/callbridge/core"
)

var scanCmd = &cobra.Command{
	Use:   "scan [text]",
	Short: "Scan text for prompt injection",
	Long: `Scans text against the threat policy and prints every finding, the admission
verdict and the sanitized text. Reads stdin when no text or "-" is given.
Exits with status 2 when the text would be blocked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policyPath, _ := cmd.Flags().GetString("policy")
		label, _ := cmd.Flags().GetString("context")
		maxLength, _ := cmd.Flags().GetInt("max-length")
		asJSON, _ := cmd.Flags().GetBool("json")

		text, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		detector, err := loadDetector(policyPath)
		if err != nil {
			return err
		}
		result := detector.Analyze(text, label)
		sanitized := core.Sanitize(text, maxLength)

		if asJSON {
			out := struct {
				*core.ScanResult
				Sanitized string `json:"sanitized"`
			}{result, sanitized}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
		} else {
			printFindings(result.Findings)
			pterm.Println()
			if result.Allowed {
				printVerdict(true, "no high severity patterns")
			} else {
				printVerdict(false, fmt.Sprintf("%d high severity findings", result.RiskAssessment.High))
			}
			pterm.DefaultSection.Println("Sanitized")
			pterm.Println(sanitized)
		}

		if !result.Allowed {
			return exitCode(2)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().String("policy", "", "Threat policy YAML (default built-in catalog)")
	scanCmd.Flags().String("context", "text", "Field label used in findings")
	scanCmd.Flags().Int("max-length", 5000, "Sanitizer length limit in characters")
	scanCmd.Flags().Bool("json", false, "Print the result as JSON")
	rootCmd.AddCommand(scanCmd)
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func readFile(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
