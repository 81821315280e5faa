// services/dispatch-service/internal/validation/gate.go

package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
	"github.com/sirupsen/logrus"
)

const (
	RuleLoadNumberRequired = "Load number required"
	RuleValidRateRequired  = "Valid rate required"
)

// Check returns the rules load violates, empty when it is valid.
func Check(load domain.Load) []string {
	var violations []string
	if strings.TrimSpace(load.LoadNumber) == "" {
		violations = append(violations, RuleLoadNumberRequired)
	}
	if load.RateCents <= 0 {
		violations = append(violations, RuleValidRateRequired)
	}
	return violations
}

type ValidationWriter interface {
	SetValidation(ctx context.Context, loadID string, status domain.ValidationStatus, errs []string) error
}

// Gate annotates newly created loads with their validation result. It never
// rejects a load, the record already exists.
type Gate struct {
	store ValidationWriter
	log   logrus.FieldLogger
}

func NewGate(s ValidationWriter, log logrus.FieldLogger) *Gate {
	return &Gate{store: s, log: log}
}

func (g *Gate) Validate(ctx context.Context, load domain.Load) (domain.ValidationStatus, error) {
	violations := Check(load)
	status := domain.ValidationPassed
	if len(violations) > 0 {
		status = domain.ValidationFailed
	}

	if err := g.store.SetValidation(ctx, load.ID, status, violations); err != nil {
		return "", fmt.Errorf("failed to record validation: %w", err)
	}

	log := g.log.WithFields(logrus.Fields{"load_id": load.ID, "status": status})
	if status == domain.ValidationFailed {
		log.WithField("violations", violations).Warn("load failed validation")
	} else {
		log.Debug("load passed validation")
	}
	return status, nil
}
