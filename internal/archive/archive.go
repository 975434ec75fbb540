// Package archive serializes profile sets for export and import.
//
// The wire format is YAML with an explicit version field so future schema
// changes can be detected rather than silently misread.
package archive

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"grimm.is/headmod/internal/profile"
)

// Version is the current archive schema version.
const Version = 1

// Document is the exported file layout.
type Document struct {
	Version    int               `yaml:"version"`
	ExportedAt string            `yaml:"exportedAt,omitempty"`
	Profiles   []profileDocument `yaml:"profiles"`
}

// profileDocument round-trips a profile through YAML. Profiles are
// JSON-tagged for the store, so the archive carries its own field mapping.
type profileDocument struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Emoji    string `yaml:"emoji,omitempty"`
	Comments string `yaml:"comments,omitempty"`
	Enabled  bool   `yaml:"enabled"`
	Priority int    `yaml:"priority,omitempty"`
	Position int    `yaml:"position"`

	RequestHeaderModGroups  []modGroupDocument    `yaml:"requestHeaderModGroups,omitempty"`
	ResponseHeaderModGroups []modGroupDocument    `yaml:"responseHeaderModGroups,omitempty"`
	SyncCookieGroups        []cookieGroupDocument `yaml:"syncCookieGroups,omitempty"`
	Filters                 filtersDocument       `yaml:"filters,omitempty"`
}

type modGroupDocument struct {
	ID    string        `yaml:"id"`
	Kind  string        `yaml:"type"`
	Items []modDocument `yaml:"items"`
}

type modDocument struct {
	ID        string `yaml:"id"`
	Enabled   bool   `yaml:"enabled"`
	Comments  string `yaml:"comments,omitempty"`
	Name      string `yaml:"name"`
	Operation string `yaml:"operation"`
	Value     string `yaml:"value,omitempty"`
}

type cookieGroupDocument struct {
	ID    string           `yaml:"id"`
	Kind  string           `yaml:"type"`
	Items []cookieDocument `yaml:"items"`
}

type cookieDocument struct {
	ID       string `yaml:"id"`
	Enabled  bool   `yaml:"enabled"`
	Comments string `yaml:"comments,omitempty"`
	Domain   string `yaml:"domain,omitempty"`
	Name     string `yaml:"name"`
	Value    string `yaml:"value"`
	Path     string `yaml:"path,omitempty"`
}

type filtersDocument struct {
	URLFilter                []entryDocument     `yaml:"urlFilter,omitempty"`
	RegexFilter              []entryDocument     `yaml:"regexFilter,omitempty"`
	RequestDomains           *domainListDocument `yaml:"requestDomains,omitempty"`
	ExcludedRequestDomains   *domainListDocument `yaml:"excludedRequestDomains,omitempty"`
	InitiatorDomains         *domainListDocument `yaml:"initiatorDomains,omitempty"`
	ExcludedInitiatorDomains *domainListDocument `yaml:"excludedInitiatorDomains,omitempty"`
	DomainType               *stringToggleDoc    `yaml:"domainType,omitempty"`
	CaseSensitive            *boolToggleDoc      `yaml:"isUrlFilterCaseSensitive,omitempty"`
	ResourceTypes            []typeDocument      `yaml:"resourceTypes,omitempty"`
	ExcludedResourceTypes    []typeDocument      `yaml:"excludedResourceTypes,omitempty"`
	RequestMethods           []typeDocument      `yaml:"requestMethods,omitempty"`
	ExcludedRequestMethods   []typeDocument      `yaml:"excludedRequestMethods,omitempty"`
	TabID                    *intToggleDoc       `yaml:"tabId,omitempty"`
}

type entryDocument struct {
	ID       string `yaml:"id"`
	Enabled  bool   `yaml:"enabled"`
	Value    string `yaml:"value"`
	Comments string `yaml:"comments,omitempty"`
}

type domainListDocument struct {
	Kind  string          `yaml:"type"`
	Items []entryDocument `yaml:"items"`
}

type typeDocument struct {
	ID      string   `yaml:"id"`
	Enabled bool     `yaml:"enabled"`
	Value   []string `yaml:"value"`
}

type stringToggleDoc struct {
	Enabled bool   `yaml:"enabled"`
	Value   string `yaml:"value"`
}

type boolToggleDoc struct {
	Enabled bool `yaml:"enabled"`
	Value   bool `yaml:"value"`
}

type intToggleDoc struct {
	Enabled bool  `yaml:"enabled"`
	Value   int64 `yaml:"value"`
}

// Export serializes profiles to YAML.
func Export(profiles []profile.Profile, exportedAt string) ([]byte, error) {
	doc := Document{Version: Version, ExportedAt: exportedAt}
	for i := range profiles {
		doc.Profiles = append(doc.Profiles, toDocument(&profiles[i]))
	}
	return yaml.Marshal(doc)
}

// Import parses and validates an exported archive.
func Import(data []byte) ([]profile.Profile, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing archive: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported archive version %d", doc.Version)
	}

	seen := make(map[uuid.UUID]bool, len(doc.Profiles))
	profiles := make([]profile.Profile, 0, len(doc.Profiles))
	for i := range doc.Profiles {
		p, err := fromDocument(&doc.Profiles[i])
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("profile %d: duplicate id %s", i, p.ID)
		}
		seen[p.ID] = true
		profiles = append(profiles, *p)
	}
	return profiles, nil
}

func toDocument(p *profile.Profile) profileDocument {
	doc := profileDocument{
		ID:       p.ID.String(),
		Name:     p.Name,
		Emoji:    p.Emoji,
		Comments: p.Comments,
		Enabled:  p.Enabled,
		Priority: p.Priority,
		Position: p.Position,
		Filters: filtersDocument{
			URLFilter:                entriesOut(p.Filters.URLFilter),
			RegexFilter:              entriesOut(p.Filters.RegexFilter),
			RequestDomains:           domainListOut(p.Filters.RequestDomains),
			ExcludedRequestDomains:   domainListOut(p.Filters.ExcludedRequestDomains),
			InitiatorDomains:         domainListOut(p.Filters.InitiatorDomains),
			ExcludedInitiatorDomains: domainListOut(p.Filters.ExcludedInitiatorDomains),
			ResourceTypes:            typesOut(p.Filters.ResourceTypes),
			ExcludedResourceTypes:    typesOut(p.Filters.ExcludedResourceTypes),
			RequestMethods:           typesOut(p.Filters.RequestMethods),
			ExcludedRequestMethods:   typesOut(p.Filters.ExcludedRequestMethods),
		},
	}
	if tg := p.Filters.DomainType; tg != nil {
		doc.Filters.DomainType = &stringToggleDoc{Enabled: tg.Enabled, Value: tg.Value}
	}
	if tg := p.Filters.CaseSensitive; tg != nil {
		doc.Filters.CaseSensitive = &boolToggleDoc{Enabled: tg.Enabled, Value: tg.Value}
	}
	if tg := p.Filters.TabID; tg != nil {
		doc.Filters.TabID = &intToggleDoc{Enabled: tg.Enabled, Value: tg.Value}
	}
	for _, g := range p.RequestHeaderModGroups {
		doc.RequestHeaderModGroups = append(doc.RequestHeaderModGroups, modGroupOut(g))
	}
	for _, g := range p.ResponseHeaderModGroups {
		doc.ResponseHeaderModGroups = append(doc.ResponseHeaderModGroups, modGroupOut(g))
	}
	for _, g := range p.SyncCookieGroups {
		items := make([]cookieDocument, 0, len(g.Items))
		for _, c := range g.Items {
			items = append(items, cookieDocument{
				ID: c.ID.String(), Enabled: c.Enabled, Comments: c.Comments,
				Domain: c.Domain, Name: c.Name, Value: c.Value, Path: c.Path,
			})
		}
		doc.SyncCookieGroups = append(doc.SyncCookieGroups, cookieGroupDocument{
			ID: g.ID.String(), Kind: string(g.Kind), Items: items,
		})
	}
	return doc
}

func modGroupOut(g profile.ModGroup) modGroupDocument {
	items := make([]modDocument, 0, len(g.Items))
	for _, m := range g.Items {
		items = append(items, modDocument{
			ID: m.ID.String(), Enabled: m.Enabled, Comments: m.Comments,
			Name: m.Name, Operation: string(m.Operation), Value: m.Value,
		})
	}
	return modGroupDocument{ID: g.ID.String(), Kind: string(g.Kind), Items: items}
}

func entriesOut(entries []profile.FilterEntry) []entryDocument {
	out := make([]entryDocument, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryDocument{ID: e.ID.String(), Enabled: e.Enabled, Value: e.Value, Comments: e.Comments})
	}
	return out
}

func domainListOut(dl *profile.DomainList) *domainListDocument {
	if dl == nil {
		return nil
	}
	items := make([]entryDocument, 0, len(dl.Items))
	for _, d := range dl.Items {
		items = append(items, entryDocument{ID: d.ID.String(), Enabled: d.Enabled, Value: d.Value, Comments: d.Comments})
	}
	return &domainListDocument{Kind: string(dl.Kind), Items: items}
}

func typesOut(sels []profile.TypeSelection) []typeDocument {
	out := make([]typeDocument, 0, len(sels))
	for _, s := range sels {
		out = append(out, typeDocument{ID: s.ID.String(), Enabled: s.Enabled, Value: s.Value})
	}
	return out
}

func fromDocument(doc *profileDocument) (*profile.Profile, error) {
	id, err := parseID(doc.ID)
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("missing name")
	}

	p := &profile.Profile{
		ID:       id,
		Name:     doc.Name,
		Emoji:    doc.Emoji,
		Comments: doc.Comments,
		Enabled:  doc.Enabled,
		Priority: doc.Priority,
		Position: doc.Position,
	}

	for i, g := range doc.RequestHeaderModGroups {
		gg, err := modGroupIn(g)
		if err != nil {
			return nil, fmt.Errorf("request group %d: %w", i, err)
		}
		p.RequestHeaderModGroups = append(p.RequestHeaderModGroups, gg)
	}
	for i, g := range doc.ResponseHeaderModGroups {
		gg, err := modGroupIn(g)
		if err != nil {
			return nil, fmt.Errorf("response group %d: %w", i, err)
		}
		p.ResponseHeaderModGroups = append(p.ResponseHeaderModGroups, gg)
	}
	for i, g := range doc.SyncCookieGroups {
		gid, err := parseID(g.ID)
		if err != nil {
			return nil, fmt.Errorf("cookie group %d: %w", i, err)
		}
		cg := profile.CookieGroup{ID: gid, Kind: profile.GroupKind(g.Kind)}
		for j, c := range g.Items {
			cid, err := parseID(c.ID)
			if err != nil {
				return nil, fmt.Errorf("cookie group %d item %d: %w", i, j, err)
			}
			cg.Items = append(cg.Items, profile.SyncCookie{
				ID: cid, Enabled: c.Enabled, Comments: c.Comments,
				Domain: c.Domain, Name: c.Name, Value: c.Value, Path: c.Path,
			})
		}
		p.SyncCookieGroups = append(p.SyncCookieGroups, cg)
	}

	f := &p.Filters
	if f.URLFilter, err = entriesIn(doc.Filters.URLFilter); err != nil {
		return nil, fmt.Errorf("urlFilter: %w", err)
	}
	if f.RegexFilter, err = entriesIn(doc.Filters.RegexFilter); err != nil {
		return nil, fmt.Errorf("regexFilter: %w", err)
	}
	if f.RequestDomains, err = domainListIn(doc.Filters.RequestDomains); err != nil {
		return nil, fmt.Errorf("requestDomains: %w", err)
	}
	if f.ExcludedRequestDomains, err = domainListIn(doc.Filters.ExcludedRequestDomains); err != nil {
		return nil, fmt.Errorf("excludedRequestDomains: %w", err)
	}
	if f.InitiatorDomains, err = domainListIn(doc.Filters.InitiatorDomains); err != nil {
		return nil, fmt.Errorf("initiatorDomains: %w", err)
	}
	if f.ExcludedInitiatorDomains, err = domainListIn(doc.Filters.ExcludedInitiatorDomains); err != nil {
		return nil, fmt.Errorf("excludedInitiatorDomains: %w", err)
	}
	if f.ResourceTypes, err = typesIn(doc.Filters.ResourceTypes); err != nil {
		return nil, fmt.Errorf("resourceTypes: %w", err)
	}
	if f.ExcludedResourceTypes, err = typesIn(doc.Filters.ExcludedResourceTypes); err != nil {
		return nil, fmt.Errorf("excludedResourceTypes: %w", err)
	}
	if f.RequestMethods, err = typesIn(doc.Filters.RequestMethods); err != nil {
		return nil, fmt.Errorf("requestMethods: %w", err)
	}
	if f.ExcludedRequestMethods, err = typesIn(doc.Filters.ExcludedRequestMethods); err != nil {
		return nil, fmt.Errorf("excludedRequestMethods: %w", err)
	}
	if tg := doc.Filters.DomainType; tg != nil {
		f.DomainType = &profile.StringToggle{Enabled: tg.Enabled, Value: tg.Value}
	}
	if tg := doc.Filters.CaseSensitive; tg != nil {
		f.CaseSensitive = &profile.BoolToggle{Enabled: tg.Enabled, Value: tg.Value}
	}
	if tg := doc.Filters.TabID; tg != nil {
		f.TabID = &profile.IntToggle{Enabled: tg.Enabled, Value: tg.Value}
	}

	return p, nil
}

func modGroupIn(doc modGroupDocument) (profile.ModGroup, error) {
	gid, err := parseID(doc.ID)
	if err != nil {
		return profile.ModGroup{}, err
	}
	g := profile.ModGroup{ID: gid, Kind: profile.GroupKind(doc.Kind)}
	for i, m := range doc.Items {
		mid, err := parseID(m.ID)
		if err != nil {
			return profile.ModGroup{}, fmt.Errorf("item %d: %w", i, err)
		}
		op := profile.Operation(m.Operation)
		switch op {
		case profile.OpSet, profile.OpAppend, profile.OpRemove:
		default:
			return profile.ModGroup{}, fmt.Errorf("item %d: unknown operation %q", i, m.Operation)
		}
		g.Items = append(g.Items, profile.HeaderMod{
			ID: mid, Enabled: m.Enabled, Comments: m.Comments,
			Name: m.Name, Operation: op, Value: m.Value,
		})
	}
	return g, nil
}

func entriesIn(docs []entryDocument) ([]profile.FilterEntry, error) {
	var out []profile.FilterEntry
	for i, d := range docs {
		id, err := parseID(d.ID)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, profile.FilterEntry{ID: id, Enabled: d.Enabled, Value: d.Value, Comments: d.Comments})
	}
	return out, nil
}

func domainListIn(doc *domainListDocument) (*profile.DomainList, error) {
	if doc == nil {
		return nil, nil
	}
	dl := &profile.DomainList{Kind: profile.GroupKind(doc.Kind)}
	for i, d := range doc.Items {
		id, err := parseID(d.ID)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		dl.Items = append(dl.Items, profile.DomainItem{ID: id, Enabled: d.Enabled, Value: d.Value, Comments: d.Comments})
	}
	return dl, nil
}

func typesIn(docs []typeDocument) ([]profile.TypeSelection, error) {
	var out []profile.TypeSelection
	for i, d := range docs {
		id, err := parseID(d.ID)
		if err != nil {
			return nil, fmt.Errorf("selection %d: %w", i, err)
		}
		out = append(out, profile.TypeSelection{ID: id, Enabled: d.Enabled, Value: d.Value})
	}
	return out, nil
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
