package manifest

import (
	"github.com/Masterminds/semver/v3"

	"hivekeeper/internal/apperr"
)

// CheckCompatible rejects manifests that need a newer keeper.
// Development builds (empty or unparsable version) accept everything.
func (m *Manifest) CheckCompatible(keeperVersion string) error {
	if m.MinKeeperVersion == "" || keeperVersion == "" {
		return nil
	}
	current, err := semver.NewVersion(keeperVersion)
	if err != nil {
		return nil
	}
	constraint, err := semver.NewConstraint(">= " + m.MinKeeperVersion)
	if err != nil {
		return apperr.NewValidation("min_keeper_version", "invalid min_keeper_version %q: %v", m.MinKeeperVersion, err)
	}
	if !constraint.Check(current) {
		return apperr.NewValidation("min_keeper_version",
			"service '%s' requires hivekeeper %s or newer (running %s)", m.Name, m.MinKeeperVersion, current)
	}
	return nil
}
