package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/SamuelRCrider/callbridge/core"
	"github.com/SamuelRCrider/callbridge/utils"
)

const previewLimit = 60

func severityLabel(s utils.Severity) string {
	switch s {
	case utils.SeverityHigh:
		return pterm.FgRed.Sprint("HIGH")
	case utils.SeverityMedium:
		return pterm.FgYellow.Sprint("MEDIUM")
	default:
		return pterm.FgBlue.Sprint("LOW")
	}
}

func printFindings(findings []utils.ThreatFinding) {
	if len(findings) == 0 {
		pterm.Success.Println("No suspicious patterns found.")
		return
	}

	counts := utils.CountBySeverity(findings)
	pterm.Warning.Printf("Found %d findings (%d high, %d medium, %d low):\n\n",
		len(findings), counts[utils.SeverityHigh], counts[utils.SeverityMedium], counts[utils.SeverityLow])

	data := [][]string{{"Severity", "Field", "Rule", "Match", "Offset"}}
	for _, f := range findings {
		data = append(data, []string{
			severityLabel(f.Severity),
			pterm.FgCyan.Sprint(f.Context),
			f.RuleID,
			preview(f.MatchedText),
			fmt.Sprintf("%d-%d", f.StartIndex, f.EndIndex),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printVerdict(allowed bool, message string) {
	if allowed {
		pterm.Success.Println("ALLOWED: " + message)
		return
	}
	pterm.Error.Println("BLOCKED: " + message)
}

func printRules(policy *core.Policy) {
	meta := policy.Metadata
	pterm.DefaultSection.Println("Policy " + meta.Version)
	if meta.Description != "" {
		pterm.Info.Println(meta.Description)
	}
	if meta.Hash != "" {
		pterm.Info.Println("sha256 " + meta.Hash)
	}

	data := [][]string{{"ID", "Severity", "Category", "Case", "Description"}}
	for _, r := range policy.Rules {
		caseLabel := "i"
		if r.CaseSensitive {
			caseLabel = "s"
		}
		category := r.Category
		if category == "" {
			category = utils.DefaultCategory(r.Severity)
		}
		data = append(data, []string{
			r.ID,
			severityLabel(r.Severity),
			string(category),
			caseLabel,
			r.Description,
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	pterm.Info.Println(strconv.Itoa(len(policy.Rules)) + " rules")
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewLimit {
		return s
	}
	return string(r[:previewLimit]) + "..."
}
