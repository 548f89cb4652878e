package blend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/calder-systems/terminal-core/internal/plant"
)

const (
	// defaultTolerancePct is applied when a request leaves tolerance unset.
	defaultTolerancePct = 5.0

	maxTolerancePct = 50.0
	maxComponents   = 16
)

// ValidationError aggregates everything wrong with a blend request so the
// caller gets one round trip, not one error per retry. It unwraps to
// ErrInvalidRequest for errors.Is checks.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("blend: invalid request: %s", strings.Join(e.Issues, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// validateRequest checks a blend request against the plant registry.
// Returned tanks and products are keyed by component index.
func validateRequest(reg *plant.Registry, req Request) ([]plant.Tank, []plant.Product, error) {
	var issues []string

	if req.Name == "" {
		issues = append(issues, "name is required")
	}
	if req.DestTankID == "" {
		issues = append(issues, "destination tank is required")
	} else if _, err := reg.Tank(req.DestTankID); err != nil {
		if errors.Is(err, plant.ErrTankNotFound) {
			issues = append(issues, fmt.Sprintf("unknown destination tank %s", req.DestTankID))
		} else {
			return nil, nil, fmt.Errorf("blend: looking up tank %s: %w", req.DestTankID, err)
		}
	}
	if len(req.Components) == 0 {
		issues = append(issues, "at least one component is required")
	}
	if len(req.Components) > maxComponents {
		issues = append(issues, fmt.Sprintf("at most %d components allowed", maxComponents))
	}
	if req.TolerancePct < 0 || req.TolerancePct > maxTolerancePct {
		issues = append(issues, fmt.Sprintf("tolerance must be between 0 and %g percent", maxTolerancePct))
	}

	tanks := make([]plant.Tank, len(req.Components))
	products := make([]plant.Product, len(req.Components))
	seen := make(map[string]struct{}, len(req.Components))

	for i, c := range req.Components {
		if c.TankID == "" {
			issues = append(issues, fmt.Sprintf("component %d: source tank is required", i))
			continue
		}
		if c.TankID == req.DestTankID {
			issues = append(issues, fmt.Sprintf("component %d: source tank %s is the destination", i, c.TankID))
		}
		if _, dup := seen[c.TankID]; dup {
			issues = append(issues, fmt.Sprintf("component %d: source tank %s appears more than once", i, c.TankID))
		}
		seen[c.TankID] = struct{}{}

		if c.TargetVolume <= 0 {
			issues = append(issues, fmt.Sprintf("component %d: target volume must be positive", i))
		}
		if c.FlowRate <= 0 {
			issues = append(issues, fmt.Sprintf("component %d: flow rate must be positive", i))
		}

		tank, err := reg.Tank(c.TankID)
		if err != nil {
			if errors.Is(err, plant.ErrTankNotFound) {
				issues = append(issues, fmt.Sprintf("component %d: unknown tank %s", i, c.TankID))
			} else {
				return nil, nil, fmt.Errorf("blend: looking up tank %s: %w", c.TankID, err)
			}
			continue
		}
		product, err := reg.Product(tank.ProductID)
		if err != nil {
			if errors.Is(err, plant.ErrProductNotFound) {
				issues = append(issues, fmt.Sprintf("component %d: tank %s has no known product", i, c.TankID))
			} else {
				return nil, nil, fmt.Errorf("blend: looking up product for tank %s: %w", c.TankID, err)
			}
			continue
		}
		tanks[i] = tank
		products[i] = product
	}

	if len(issues) > 0 {
		return nil, nil, &ValidationError{Issues: issues}
	}
	return tanks, products, nil
}
