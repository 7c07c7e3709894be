package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/SamuelRCrider/callbridge/core"
	"github.com/SamuelRCrider/callbridge/extract"
	"github.com/SamuelRCrider/callbridge/notify"
)

// FormatNote renders the CRM note for a screened call.
func FormatNote(rec core.CallRecord, call *extract.Call, at time.Time) string {
	parts := []string{"📞 AI Call Summary - " + at.UTC().Format("2006-01-02 15:04 UTC")}

	if rec.CallDuration > 0 {
		parts = append(parts, "Duration: "+notify.FormatDuration(rec.CallDuration))
	}
	if rec.CallOutcome != "" {
		parts = append(parts, "Outcome: "+rec.CallOutcome)
	}
	if rec.CallSummary != "" {
		parts = append(parts, "Summary: "+rec.CallSummary)
	}
	if call != nil {
		if property := propertyLine(call); property != "" {
			parts = append(parts, "Property: "+property)
		}
		if call.Source != "" {
			parts = append(parts, "Lead Source: "+call.Source)
		}
		if call.Agent != "" {
			parts = append(parts, "Assigned To: "+call.Agent)
		}
	}
	if rec.Transcript != "" {
		parts = append(parts, "Transcript:\n"+rec.Transcript)
	}

	return strings.Join(parts, "\n\n")
}

func propertyLine(call *extract.Call) string {
	var bits []string
	if call.Acreage != "" {
		bits = append(bits, fmt.Sprintf("%s acres", call.Acreage))
	}
	if call.County != "" {
		bits = append(bits, call.County+" County")
	}
	if call.State != "" {
		bits = append(bits, call.State)
	}
	return strings.Join(bits, ", ")
}
