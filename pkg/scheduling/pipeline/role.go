package pipeline

import (
	"fmt"
	"strings"
	"time"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
)

// Role names one of the stock development stages.
type Role int

const (
	Analyst Role = iota
	Developer
	Tester
	Manager
)

var roleNames = [...]string{"Analyst", "Developer", "Tester", "Manager"}

// Roles returns the stock stages in pipeline order.
func Roles() []Role {
	return []Role{Analyst, Developer, Tester, Manager}
}

// String returns the stage name, e.g. "Developer".
func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole is the case-insensitive inverse of String.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if strings.EqualFold(s, name) {
			return Role(i), nil
		}
	}
	return 0, sferrors.NewValidationError("pipeline", "Role", s, "unknown role").
		WithHint("use one of: " + strings.Join(roleNames[:], ", "))
}

// Stage returns a StageConfig for the role.
func (r Role) Stage(workers int, processingTime time.Duration) StageConfig {
	return StageConfig{
		Name:           r.String(),
		Workers:        workers,
		ProcessingTime: processingTime,
	}
}
