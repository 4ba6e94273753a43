package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ANSI escape codes for terminal formatting.
const (
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	reset  = "\033[0m"
)

// FormatVersions formats a VersionsReport as a terminal-friendly table.
// The current version is marked with an asterisk.
func FormatVersions(r *VersionsReport) string {
	var b strings.Builder

	b.WriteString(bold + "Schema Package: " + r.Package + reset + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")
	if r.Dir != "" {
		b.WriteString(fmt.Sprintf("Directory: %s\n", r.Dir))
	}
	b.WriteString(fmt.Sprintf("Current:   %s%s%s\n\n", green, r.Current, reset))

	b.WriteString(fmt.Sprintf("  %-30s %6s %6s  %s\n", "Version", "Number", "Tables", "Fingerprint"))
	b.WriteString(strings.Repeat("-", 70) + "\n")
	for _, v := range r.Versions {
		marker := " "
		if v.Current {
			marker = "*"
		}
		b.WriteString(fmt.Sprintf("%s %-30s %6d %6d  %s\n",
			marker, v.Name, v.Number, v.Tables, shortFingerprint(v.Fingerprint)))
	}

	return b.String()
}

// FormatPlan formats a PlanReport as a numbered list of steps.
func FormatPlan(r *PlanReport) string {
	var b strings.Builder

	b.WriteString(bold + fmt.Sprintf("Migration Plan: %s -> %s", r.From, r.To) + reset + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	if len(r.Steps) == 0 {
		b.WriteString(yellow + "No migration steps." + reset + "\n")
		return b.String()
	}
	writeSteps(&b, r.Steps)
	b.WriteString(fmt.Sprintf("\n%d steps\n", len(r.Steps)))
	return b.String()
}

// FormatCheck formats a CheckReport.
func FormatCheck(r *CheckReport) string {
	var b strings.Builder

	b.WriteString(bold + "Store Check" + reset + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	b.WriteString(fmt.Sprintf("%-12s %s\n", "Store:", r.Path))
	b.WriteString(fmt.Sprintf("%-12s %s\n", "Target:", r.Target))

	switch {
	case r.Error != "":
		if r.Exists {
			b.WriteString(fmt.Sprintf("%-12s %s\n", "Size:", humanize.Bytes(uint64(r.SizeBytes))))
		}
		b.WriteString(fmt.Sprintf("%-12s %s%s%s\n", "Status:", red, r.Error, reset))
	case !r.Exists:
		b.WriteString(fmt.Sprintf("%-12s %s%s%s\n", "Status:", yellow, "store does not exist", reset))
	default:
		b.WriteString(fmt.Sprintf("%-12s %s\n", "Size:", humanize.Bytes(uint64(r.SizeBytes))))
		b.WriteString(fmt.Sprintf("%-12s %s\n", "Version:", r.Version))
		if r.RecordedVersion != "" && r.RecordedVersion != r.Version {
			b.WriteString(fmt.Sprintf("%-12s %s\n", "Recorded:", r.RecordedVersion))
		}
		if r.Compatible {
			b.WriteString(fmt.Sprintf("%-12s %s%s%s\n", "Status:", green, "up to date", reset))
		} else {
			b.WriteString(fmt.Sprintf("%-12s %s%d steps behind%s\n\n", "Status:", yellow, len(r.Steps), reset))
			writeSteps(&b, r.Steps)
		}
	}

	return b.String()
}

// FormatMigration formats a MigrationReport with its trace.
func FormatMigration(r *MigrationReport) string {
	var b strings.Builder

	b.WriteString(bold + "Migration" + reset + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	b.WriteString(fmt.Sprintf("%-10s %s\n", "Store:", r.Path))
	b.WriteString(fmt.Sprintf("%-10s %s\n", "Target:", r.Target))
	if r.Success {
		b.WriteString(fmt.Sprintf("%-10s %s%s%s\n\n", "Result:", green, "success", reset))
	} else {
		b.WriteString(fmt.Sprintf("%-10s %s%s%s\n\n", "Result:", red, "failed", reset))
	}

	for _, line := range r.Trace {
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

// FormatJSON marshals any value as indented JSON.
func FormatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

func writeSteps(b *strings.Builder, steps []StepEntry) {
	for i, s := range steps {
		b.WriteString(fmt.Sprintf("%3d. %s -> %s (%s)\n", i+1, s.From, s.To, s.Mapping))
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
