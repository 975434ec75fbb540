// Package compile turns profile cores into engine-native rule conditions
// and actions. Both compilers are pure and total: malformed or blank values
// compile to nothing, never to an error.
package compile

import (
	"fmt"
	"strings"

	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/profile"
)

// Options controls condition compilation.
type Options struct {
	// NativeResourceTypeBehavior leaves the resourceTypes facet absent when
	// the profile does not constrain it, letting the engine's own default
	// apply. The engine default excludes main_frame, so the flag is off by
	// default and the compiler emits the full resource-type set instead.
	NativeResourceTypeBehavior bool
}

// Condition compiles a profile's filter facets into an engine condition.
// Facets are visited in the fixed order of profile.AllFacetKeys; each facet
// writes into the output only when its extracted value is non-empty.
func Condition(core profile.Core, opts Options) engine.Condition {
	var cond engine.Condition
	f := core.Filters

	for _, key := range profile.AllFacetKeys {
		switch key {
		case profile.FacetURLFilter:
			if v := profile.FirstEnabledValue(f.URLFilter); v != "" {
				cond.URLFilter = v
			}
		case profile.FacetRegexFilter:
			if v := profile.FirstEnabledValue(f.RegexFilter); v != "" {
				cond.RegexFilter = v
			}
		case profile.FacetRequestDomains:
			cond.RequestDomains = profile.EnabledDomainValues(f.RequestDomains)
		case profile.FacetExcludedRequestDomains:
			cond.ExcludedRequestDomains = profile.EnabledDomainValues(f.ExcludedRequestDomains)
		case profile.FacetInitiatorDomains:
			cond.InitiatorDomains = profile.EnabledDomainValues(f.InitiatorDomains)
		case profile.FacetExcludedInitiatorDomains:
			cond.ExcludedInitiatorDomains = profile.EnabledDomainValues(f.ExcludedInitiatorDomains)
		case profile.FacetDomainType:
			if t := f.DomainType; t != nil && t.Enabled {
				if v := strings.TrimSpace(t.Value); v != "" {
					cond.DomainType = v
				}
			}
		case profile.FacetCaseSensitive:
			if t := f.CaseSensitive; t != nil && t.Enabled {
				v := t.Value
				cond.IsURLFilterCaseSensitive = &v
			}
		case profile.FacetResourceTypes:
			cond.ResourceTypes = profile.EnabledTypeValues(f.ResourceTypes)
		case profile.FacetExcludedResourceTypes:
			cond.ExcludedResourceTypes = profile.EnabledTypeValues(f.ExcludedResourceTypes)
		case profile.FacetRequestMethods:
			cond.RequestMethods = profile.EnabledTypeValues(f.RequestMethods)
		case profile.FacetExcludedRequestMethods:
			cond.ExcludedRequestMethods = profile.EnabledTypeValues(f.ExcludedRequestMethods)
		case profile.FacetTabID:
			// Recognized, compiles to nothing: tab scoping is session state,
			// not part of the persistent rule surface.
		default:
			panic(fmt.Sprintf("compile: unhandled facet %q", key))
		}
	}

	// The engine's default resource-type set excludes top-level documents,
	// which surprises users. Unless the profile constrains resource types or
	// the native behavior is requested, match everything explicitly.
	if len(cond.ResourceTypes) == 0 && len(cond.ExcludedResourceTypes) == 0 &&
		!opts.NativeResourceTypeBehavior {
		cond.ResourceTypes = append([]string(nil), engine.AllResourceTypes...)
	}

	return cond
}
