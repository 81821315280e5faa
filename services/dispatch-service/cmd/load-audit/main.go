//services/dispatch-service/cmd/load-audit/main.go

// Command load-audit checks every load's driver reference against the
// driver set and reports completed-load counter drift.
//
//	load-audit                          read-only report
//	load-audit --fix                    repair name-matched references, then
//	                                    pick a driver for each unassigned load
//	load-audit --fix --default-driver=ID
//	                                    repair, then assign every unassigned
//	                                    load to ID
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	pkgkafka "github.com/dukens11-create/gud/pkg/kafka"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/audit"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/earnings"
	"github.com/dukens11-create/gud/services/dispatch-service/internal/store/postgres"
	"github.com/dukens11-create/gud/shared/config"
	"github.com/dukens11-create/gud/shared/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("load-audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fix := fs.Bool("fix", false, "apply repairs instead of only reporting")
	defaultDriver := fs.String("default-driver", "", "with --fix, assign every load without a driver to this driver id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *defaultDriver != "" && !*fix {
		fmt.Fprintln(stderr, "--default-driver requires --fix")
		return 2
	}

	cfg := config.LoadCommonConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "setup failed: %v\n", err)
		return 1
	}
	log := logger.New(logger.Options{Service: "load-audit", Level: cfg.LOG_LEVEL})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.GetDBURL())
	if err != nil {
		fmt.Fprintf(stderr, "setup failed: %v\n", err)
		return 1
	}
	st := postgres.NewPostgresStore(db)
	defer st.Close()

	var publisher audit.Publisher
	if *fix && cfg.KAFKA_BROKER != "" {
		producer := pkgkafka.NewChangeProducer(cfg.KAFKA_BROKER, cfg.KAFKA_TOPIC)
		defer producer.Close()
		publisher = producer
	}

	auditor := audit.NewAuditor(st, publisher, log)
	report, err := auditor.Scan(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "audit failed: %v\n", err)
		return 1
	}
	audit.PrintReport(stdout, report)

	if !*fix {
		return 0
	}
	if report.Drivers == 0 {
		fmt.Fprintln(stderr, "no drivers found, add drivers before running --fix")
		return 1
	}
	if err := applyFixes(ctx, auditor, st, *defaultDriver, stdin, stdout, log); err != nil {
		fmt.Fprintf(stderr, "fix failed: %v\n", err)
		return 1
	}
	return 0
}

// fixStore is what --fix reads and writes.
type fixStore interface {
	audit.Store
	earnings.Store
}

func applyFixes(ctx context.Context, auditor *audit.Auditor, st fixStore, defaultDriver string, stdin io.Reader, stdout io.Writer, log logrus.FieldLogger) error {
	if defaultDriver != "" {
		_, err := st.GetDriver(ctx, defaultDriver)
		if errors.Is(err, domain.ErrDriverNotFound) {
			return fmt.Errorf("driver %q does not exist", defaultDriver)
		}
		if err != nil {
			return err
		}
	}

	repaired, err := auditor.Repair(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nRepaired driver references: %d\n", len(repaired.Repaired))
	if n := len(repaired.Ambiguous) + len(repaired.Unmatched); n > 0 {
		fmt.Fprintf(stdout, "Left for manual review: %d\n", n)
	}

	var assigned []domain.DriverReassignment
	if defaultDriver != "" {
		assigned, err = auditor.AssignLegacy(ctx, defaultDriver)
	} else {
		assigned, err = auditor.AssignInteractive(ctx, stdin, stdout)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Assigned loads without a driver: %d\n", len(assigned))

	// repairs can turn delivered loads with a stale reference into creditable ones
	report, err := auditor.Scan(ctx)
	if err != nil {
		return err
	}
	settled, err := auditor.Settle(ctx, report, earnings.NewUpdater(st, log))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Credited delivered loads: %d\n", settled.Credited)
	if settled.Marked > 0 {
		fmt.Fprintf(stdout, "Marked settled without credit (counter already included them): %d\n", settled.Marked)
	}
	return nil
}
