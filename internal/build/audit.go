// SPDX-License-Identifier: MPL-2.0

package build

import (
	"github.com/zhaixiaojuan/maturin/internal/issue"
	"github.com/zhaixiaojuan/maturin/pkg/auditwheel"
)

// Audit checks a compiled artifact against the platform policy the
// compatibility value (or the configuration) selects.
func (s *Session) Audit(path, compatibility string) (*auditwheel.Report, error) {
	if compatibility == "" {
		compatibility = s.Config.Compatibility.String()
	}
	tag, err := s.Target.PlatformTag(compatibility)
	if err != nil {
		return nil, err
	}
	policies, err := auditwheel.DefaultPolicies()
	if err != nil {
		return nil, err
	}
	report, err := auditwheel.Check(path, auditwheel.Options{
		Target:   s.Target,
		Tag:      tag,
		Auto:     compatibility == "" || compatibility == "auto",
		Policies: policies,
		Logger:   s.Logger,
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("audit binary").
			WithResource(path).
			WithSuggestions(suggestionsFor(err)...).
			Wrap(err).
			BuildError()
	}
	return report, nil
}
