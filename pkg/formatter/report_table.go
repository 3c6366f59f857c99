package formatter

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/younsl/allowme/internal/models"
	"github.com/younsl/allowme/pkg/utils"
)

const (
	reportHeader = "LAYER\tRESOURCE\tRULE\tCIDR\tRESULT"
	reportFormat = "%s\t%s\t%s\t%s\t%s\n"
)

// PrintReportTable prints the outcome of each access-control layer
func PrintReportTable(w io.Writer, report *models.Report) {
	if report == nil {
		return
	}

	if report.Target.CIDR != "" {
		fmt.Fprintf(w, "Public address: %s (%s)\n\n", report.Target.IP, regionLabel(report.Region))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, reportHeader)

	for _, step := range []models.StepResult{report.NetworkACL, report.SecurityGroup} {
		rule := "-"
		if step.RuleNumber > 0 {
			rule = strconv.Itoa(int(step.RuleNumber))
		}

		cidr := report.Target.CIDR
		if cidr == "" {
			cidr = "-"
		}

		fmt.Fprintf(tw, reportFormat,
			step.Layer,
			step.ResourceID,
			rule,
			cidr,
			step.Outcome,
		)
	}

	tw.Flush()

	printTimestamp(w, report.StartTime, report.Duration)
}

// PrintReportErrors prints the error of every failed layer
func PrintReportErrors(w io.Writer, report *models.Report) {
	if report == nil {
		return
	}
	for _, step := range []models.StepResult{report.NetworkACL, report.SecurityGroup} {
		if step.Failed() && step.Err != nil {
			fmt.Fprintf(w, "Error on %s %s: %v\n", step.Layer, step.ResourceID, step.Err)
		}
	}
}

func regionLabel(region string) string {
	if region == "" {
		return "default region"
	}
	return fmt.Sprintf("%s, %s", region, utils.GetRegionDescriptiveName(region))
}
