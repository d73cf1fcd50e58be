// SPDX-License-Identifier: MPL-2.0

package auditwheel

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/zhaixiaojuan/maturin/pkg/target"
)

//go:embed policy.yaml
var policyYAML []byte

type (
	// Policy is the requirement bound of one Linux tier.
	Policy struct {
		Name           string            `yaml:"name"`
		SymbolVersions map[string]string `yaml:"symbol_versions"`
		LibWhitelist   []string          `yaml:"lib_whitelist"`
	}

	// PolicySet holds the manylinux and musllinux tiers, strictest first.
	PolicySet struct {
		Loaders   []string `yaml:"loaders"`
		Manylinux []Policy `yaml:"manylinux"`
		Musllinux []Policy `yaml:"musllinux"`
	}
)

var defaultPolicies = sync.OnceValues(func() (*PolicySet, error) {
	return ParsePolicies(policyYAML)
})

// DefaultPolicies returns the embedded policy table.
func DefaultPolicies() (*PolicySet, error) {
	return defaultPolicies()
}

// ParsePolicies decodes a YAML policy table and validates its versions.
func ParsePolicies(data []byte) (*PolicySet, error) {
	var set PolicySet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse policy table: %w", err)
	}
	for _, family := range [][]Policy{set.Manylinux, set.Musllinux} {
		for _, p := range family {
			for ns, v := range p.SymbolVersions {
				if !semver.IsValid("v" + v) {
					return nil, fmt.Errorf("policy %s: invalid %s version %q", p.Name, ns, v)
				}
			}
		}
	}
	return &set, nil
}

// Lookup returns the policy for a tier tag.
func (s *PolicySet) Lookup(tag target.Tag) (Policy, bool) {
	var family []Policy
	switch tag.Kind {
	case target.KindManylinux:
		family = s.Manylinux
	case target.KindMusllinux:
		family = s.Musllinux
	default:
		return Policy{}, false
	}
	name := tag.PolicyName()
	i := slices.IndexFunc(family, func(p Policy) bool { return p.Name == name })
	if i < 0 {
		return Policy{}, false
	}
	return family[i], true
}

// allowsLibrary reports whether a DT_NEEDED entry is whitelisted by p or is
// a dynamic loader.
func (s *PolicySet) allowsLibrary(p Policy, lib string) bool {
	for _, list := range [][]string{p.LibWhitelist, s.Loaders} {
		for _, pattern := range list {
			if pattern == lib {
				return true
			}
			if ok, _ := doublestar.Match(pattern, lib); ok {
				return true
			}
		}
	}
	return false
}

// symbolViolation checks one versioned symbol against p. Versions outside
// the policy's namespaces are not bounded.
func symbolViolation(p Policy, name, version string) (Violation, bool) {
	i := strings.LastIndex(version, "_")
	if i <= 0 {
		return Violation{}, false
	}
	ns, v := version[:i], version[i+1:]
	limit, ok := p.SymbolVersions[ns]
	if !ok {
		return Violation{}, false
	}
	if !semver.IsValid("v" + v) {
		return Violation{Symbol: name, Version: version, Reason: fmt.Sprintf("non-versioned %s symbol is not allowed", ns)}, true
	}
	if semver.Compare("v"+v, "v"+limit) > 0 {
		return Violation{Symbol: name, Version: version, Reason: fmt.Sprintf("%s %s exceeds %s %s", ns, v, p.Name, limit)}, true
	}
	return Violation{}, false
}
