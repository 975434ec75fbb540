// Package profile defines the user-facing profile data model: named bundles
// of header modifications, cookie syncs and match filters that compile into
// engine rules.
package profile

import (
	"strings"

	"github.com/google/uuid"
)

// Operation is a header modification operation.
type Operation string

const (
	OpSet    Operation = "set"
	OpAppend Operation = "append"
	OpRemove Operation = "remove"
)

// GroupKind controls UI selection behavior within a group. It has no
// compilation semantics.
type GroupKind string

const (
	GroupRadio    GroupKind = "radio"
	GroupCheckbox GroupKind = "checkbox"
)

// HeaderMod is a single header set/append/remove instruction.
// A remove needs only a name; set and append need a name and a value.
type HeaderMod struct {
	ID        uuid.UUID `json:"id"`
	Enabled   bool      `json:"enabled"`
	Comments  string    `json:"comments,omitempty"`
	Name      string    `json:"name"`
	Operation Operation `json:"operation"`
	Value     string    `json:"value,omitempty"`
}

// ModGroup is an ordered group of header mods. Grouping exists for UI
// presentation only; compilation flattens all groups in order.
type ModGroup struct {
	ID    uuid.UUID   `json:"id"`
	Kind  GroupKind   `json:"type"`
	Items []HeaderMod `json:"items"`
}

// SyncCookie is a cookie synced into the request Cookie header.
// Path is only used to query new cookies after the first sync; it is not
// compiled.
type SyncCookie struct {
	ID       uuid.UUID `json:"id"`
	Enabled  bool      `json:"enabled"`
	Comments string    `json:"comments,omitempty"`
	Domain   string    `json:"domain"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
}

// CookieGroup is an ordered group of sync cookies.
type CookieGroup struct {
	ID    uuid.UUID    `json:"id"`
	Kind  GroupKind    `json:"type"`
	Items []SyncCookie `json:"items"`
}

// FilterEntry is one candidate value in a single-select facet (urlFilter,
// regexFilter). The first enabled entry wins.
type FilterEntry struct {
	ID       uuid.UUID `json:"id"`
	Enabled  bool      `json:"enabled"`
	Value    string    `json:"value"`
	Comments string    `json:"comments,omitempty"`
}

// DomainItem is one domain in a multi-value domain facet.
type DomainItem struct {
	ID       uuid.UUID `json:"id"`
	Enabled  bool      `json:"enabled"`
	Value    string    `json:"value"`
	Comments string    `json:"comments,omitempty"`
}

// DomainList is a multi-value domain facet. Compiles to the trimmed,
// non-blank, enabled item values; omitted entirely when that list is empty.
type DomainList struct {
	Kind  GroupKind    `json:"type"`
	Items []DomainItem `json:"items"`
}

// StringToggle is a toggle-with-value facet holding a string (domainType).
type StringToggle struct {
	Enabled bool   `json:"enabled"`
	Value   string `json:"value"`
}

// BoolToggle is a toggle-with-value facet holding a bool
// (isUrlFilterCaseSensitive).
type BoolToggle struct {
	Enabled bool `json:"enabled"`
	Value   bool `json:"value"`
}

// IntToggle is a toggle-with-value facet holding an integer (tabId).
type IntToggle struct {
	Enabled bool  `json:"enabled"`
	Value   int64 `json:"value"`
}

// TypeSelection is one entry of an array-of-tagged-values facet
// (resourceTypes, requestMethods and their excluded variants). Enabled
// entries' value arrays are flattened.
type TypeSelection struct {
	ID      uuid.UUID `json:"id"`
	Enabled bool      `json:"enabled"`
	Value   []string  `json:"value"`
}

// Filters is the sparse record of filter facets. A nil/empty facet means
// "unconstrained" for that dimension.
type Filters struct {
	URLFilter                []FilterEntry   `json:"urlFilter,omitempty"`
	RegexFilter              []FilterEntry   `json:"regexFilter,omitempty"`
	RequestDomains           *DomainList     `json:"requestDomains,omitempty"`
	ExcludedRequestDomains   *DomainList     `json:"excludedRequestDomains,omitempty"`
	InitiatorDomains         *DomainList     `json:"initiatorDomains,omitempty"`
	ExcludedInitiatorDomains *DomainList     `json:"excludedInitiatorDomains,omitempty"`
	DomainType               *StringToggle   `json:"domainType,omitempty"`
	CaseSensitive            *BoolToggle     `json:"isUrlFilterCaseSensitive,omitempty"`
	ResourceTypes            []TypeSelection `json:"resourceTypes,omitempty"`
	ExcludedResourceTypes    []TypeSelection `json:"excludedResourceTypes,omitempty"`
	RequestMethods           []TypeSelection `json:"requestMethods,omitempty"`
	ExcludedRequestMethods   []TypeSelection `json:"excludedRequestMethods,omitempty"`
	TabID                    *IntToggle      `json:"tabId,omitempty"`
}

// FacetKey identifies one filter facet. The set is closed: the condition
// compiler switches exhaustively over AllFacetKeys and panics on an unknown
// key, so adding a facet here without teaching the compiler about it fails
// loudly (and is caught by the facet coverage test).
type FacetKey string

const (
	FacetURLFilter                FacetKey = "urlFilter"
	FacetRegexFilter              FacetKey = "regexFilter"
	FacetRequestDomains           FacetKey = "requestDomains"
	FacetExcludedRequestDomains   FacetKey = "excludedRequestDomains"
	FacetInitiatorDomains         FacetKey = "initiatorDomains"
	FacetExcludedInitiatorDomains FacetKey = "excludedInitiatorDomains"
	FacetDomainType               FacetKey = "domainType"
	FacetCaseSensitive            FacetKey = "isUrlFilterCaseSensitive"
	FacetResourceTypes            FacetKey = "resourceTypes"
	FacetExcludedResourceTypes    FacetKey = "excludedResourceTypes"
	FacetRequestMethods           FacetKey = "requestMethods"
	FacetExcludedRequestMethods   FacetKey = "excludedRequestMethods"
	FacetTabID                    FacetKey = "tabId"
)

// AllFacetKeys lists every known facet in compilation order. The order is
// irrelevant for correctness but fixed for testability.
var AllFacetKeys = []FacetKey{
	FacetURLFilter,
	FacetRegexFilter,
	FacetRequestDomains,
	FacetExcludedRequestDomains,
	FacetInitiatorDomains,
	FacetExcludedInitiatorDomains,
	FacetDomainType,
	FacetCaseSensitive,
	FacetResourceTypes,
	FacetExcludedResourceTypes,
	FacetRequestMethods,
	FacetExcludedRequestMethods,
	FacetTabID,
}

// DefaultPriority is used when a profile does not set one.
const DefaultPriority = 1

// Profile is a named, user-ordered configuration unit.
type Profile struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Emoji    string    `json:"emoji,omitempty"`
	Comments string    `json:"comments,omitempty"`
	Enabled  bool      `json:"enabled"`
	Priority int       `json:"priority,omitempty"`
	// Position orders profiles in the UI list; it has no compilation
	// semantics.
	Position int `json:"position"`

	RequestHeaderModGroups  []ModGroup    `json:"requestHeaderModGroups"`
	ResponseHeaderModGroups []ModGroup    `json:"responseHeaderModGroups"`
	SyncCookieGroups        []CookieGroup `json:"syncCookieGroups"`
	Filters                 Filters       `json:"filters"`
}

// EffectivePriority returns the priority passed to the engine.
func (p *Profile) EffectivePriority() int {
	if p.Priority > 0 {
		return p.Priority
	}
	return DefaultPriority
}

// New creates an empty enabled profile with a fresh identifier.
func New(name string) *Profile {
	return &Profile{
		ID:      uuid.New(),
		Name:    name,
		Enabled: true,
	}
}

// FirstEnabledValue returns the trimmed value of the first enabled entry in
// a single-select facet, or "" when no entry qualifies.
func FirstEnabledValue(entries []FilterEntry) string {
	for _, e := range entries {
		if e.Enabled {
			return strings.TrimSpace(e.Value)
		}
	}
	return ""
}

// EnabledDomainValues returns the trimmed, non-blank values of enabled items
// in a multi-value domain facet.
func EnabledDomainValues(l *DomainList) []string {
	if l == nil {
		return nil
	}
	var out []string
	for _, item := range l.Items {
		if !item.Enabled {
			continue
		}
		v := strings.TrimSpace(item.Value)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// EnabledTypeValues flattens the value arrays of enabled selections in an
// array-of-tagged-values facet.
func EnabledTypeValues(sels []TypeSelection) []string {
	var out []string
	for _, s := range sels {
		if !s.Enabled {
			continue
		}
		out = append(out, s.Value...)
	}
	return out
}
