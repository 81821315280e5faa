// services/dispatch-service/internal/audit/interactive.go

package audit

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
)

// AssignInteractive walks every load without a driver and asks on out which
// driver to assign, reading answers from in. 0 skips a load and -1 stops
// asking. The chosen assignments are written in one transaction.
func (a *Auditor) AssignInteractive(ctx context.Context, in io.Reader, out io.Writer) ([]domain.DriverReassignment, error) {
	snap, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(snap.drivers) == 0 {
		return nil, ErrNoDrivers
	}
	report := buildReport(snap)
	if len(report.Absent) == 0 {
		fmt.Fprintln(out, "No loads without a driver.")
		return nil, nil
	}

	scanner := bufio.NewScanner(in)
	assignments := make(map[string]domain.Driver)

loads:
	for i, l := range report.Absent {
		fmt.Fprintf(out, "\n[%d/%d] Load %s (%s -> %s, %s)\n", i+1, len(report.Absent),
			display(l.LoadNumber), display(l.PickupCity), display(l.DeliveryCity), l.Status)
		for n, d := range snap.drivers {
			fmt.Fprintf(out, "  %d) %s <%s>\n", n+1, d.Name, d.ID)
		}

		for {
			fmt.Fprintf(out, "Driver [1-%d], 0 to skip, -1 to finish: ", len(snap.drivers))
			if !scanner.Scan() {
				break loads
			}
			choice, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
			switch {
			case err != nil || choice < -1 || choice > len(snap.drivers):
				fmt.Fprintln(out, "Invalid choice.")
				continue
			case choice == -1:
				break loads
			case choice == 0:
				continue loads
			default:
				assignments[l.ID] = snap.drivers[choice-1]
				continue loads
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	return a.assign(ctx, assignments)
}

func display(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
