// services/dispatch-service/internal/audit/print.go

package audit

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// PrintReport writes a human-readable audit report.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, "=== Load / driver audit ===")
	fmt.Fprintf(w, "Drivers: %d\nLoads:   %d\n", r.Drivers, r.TotalLoads)
	fmt.Fprintf(w, "  valid driver reference:  %d\n", r.Valid)
	fmt.Fprintf(w, "  no driver reference:     %d\n", len(r.Absent))
	fmt.Fprintf(w, "  unresolvable reference:  %d\n", len(r.Unresolvable))

	if fixable := r.Fixable(); len(fixable) > 0 {
		fmt.Fprintln(w, "\nSuggested fixes:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  LOAD\tCURRENT\tNAME\tSUGGESTED")
		for _, f := range fixable {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s (%s)\n", loadLabel(f), f.Load.DriverID, f.Load.DriverName, f.Match.Driver.ID, f.Match.Driver.Name)
		}
		_ = tw.Flush()
	}

	if ambiguous := r.Ambiguous(); len(ambiguous) > 0 {
		fmt.Fprintln(w, "\nAmbiguous (not repaired, several drivers share the name):")
		for _, f := range ambiguous {
			ids := make([]string, len(f.Match.Candidates))
			for i, c := range f.Match.Candidates {
				ids[i] = c.ID
			}
			fmt.Fprintf(w, "  %s  %q -> %s\n", loadLabel(f), f.Load.DriverName, strings.Join(ids, ", "))
		}
	}

	if unmatched := r.Unmatched(); len(unmatched) > 0 {
		fmt.Fprintln(w, "\nNo matching driver:")
		for _, f := range unmatched {
			fmt.Fprintf(w, "  %s  driverId=%q driverName=%q\n", loadLabel(f), f.Load.DriverID, f.Load.DriverName)
		}
	}

	if len(r.Divergences) > 0 {
		fmt.Fprintln(w, "\nCompleted-load counter divergence:")
		for _, d := range r.Divergences {
			fmt.Fprintf(w, "  %s (%s): stored=%d delivered=%d\n", d.Driver.Name, d.Driver.ID, d.Stored, d.Live)
			for _, c := range d.Causes {
				fmt.Fprintf(w, "    - %s\n", c)
			}
		}
	}

	if len(r.Unsettled) > 0 {
		fmt.Fprintf(w, "\nDelivered loads never credited: %d\n", len(r.Unsettled))
	}

	if r.Clean() {
		fmt.Fprintln(w, "\nNothing to fix.")
	}
}

func loadLabel(f Finding) string {
	if f.Load.LoadNumber != "" {
		return f.Load.LoadNumber
	}
	return f.Load.ID
}
