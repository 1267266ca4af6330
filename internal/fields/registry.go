// Package fields holds the registry of logical patient list fields: where each
// field is stored and how its value is read from a patient or a visit.
package fields

import (
	"sort"
	"strings"

	"github.com/rpattn/patientlist/internal/domain"
)

// Side identifies the entity a field belongs to.
type Side int

const (
	SidePatient Side = iota
	SideVisit
)

// Prefix returns the logical name prefix used by fields of the side.
func (s Side) Prefix() string {
	if s == SideVisit {
		return "v."
	}
	return "p."
}

// AttributePrefix returns the logical name prefix of attribute fields of the side.
func (s Side) AttributePrefix() string {
	return s.Prefix() + "attr."
}

func (s Side) String() string {
	if s == SideVisit {
		return "visit"
	}
	return "patient"
}

// DateLayout is the layout of date literals in conditions and of dates
// rendered into templates.
const DateLayout = "2006-01-02"

// ValueType is the declared type of a field value.
type ValueType int

const (
	TypeText ValueType = iota
	TypeDate
	TypeNumeric
	TypeBoolean
)

// Collection is a multi-valued patient sub-collection reachable through a join alias.
type Collection int

const (
	CollectionNames Collection = iota
	CollectionAddresses
	CollectionIdentifiers
)

// Alias returns the table alias used when the collection is joined.
func (c Collection) Alias() string {
	switch c {
	case CollectionNames:
		return "pnames"
	case CollectionAddresses:
		return "paddresses"
	case CollectionIdentifiers:
		return "pidentifiers"
	}
	return ""
}

// Mapping describes where a field is stored. It is one of Plain, Attribute or Alias.
type Mapping interface {
	isMapping()
}

// Plain is a column on the patient (alias "p") or visit (alias "v") table.
type Plain struct {
	Alias  string
	Column string
}

// Path returns the qualified column reference.
func (m Plain) Path() string {
	return m.Alias + "." + m.Column
}

// Attribute is a dynamic attribute identified by its attribute type name.
type Attribute struct {
	Side  Side
	Label string
}

// Alias is a column of a joined patient sub-collection.
type Alias struct {
	Collection Collection
	Column     string
}

// Path returns the qualified column reference, or "" for an unknown collection.
func (m Alias) Path() string {
	alias := m.Collection.Alias()
	if alias == "" {
		return ""
	}
	return alias + "." + m.Column
}

func (Plain) isMapping()     {}
func (Attribute) isMapping() {}
func (Alias) isMapping()     {}

// Descriptor is a registry entry. A nil Mapping marks a field that can be
// rendered but not queried.
type Descriptor struct {
	Name    string
	Mapping Mapping
	Type    ValueType
	Side    Side

	patientValue func(domain.Patient) any
	visitValue   func(domain.Visit) any
}

// PatientField declares a field read from the patient.
func PatientField(name string, mapping Mapping, typ ValueType, value func(domain.Patient) any) Descriptor {
	return Descriptor{Name: name, Mapping: mapping, Type: typ, Side: SidePatient, patientValue: value}
}

// VisitField declares a field read from the visit.
func VisitField(name string, mapping Mapping, typ ValueType, value func(domain.Visit) any) Descriptor {
	return Descriptor{Name: name, Mapping: mapping, Type: typ, Side: SideVisit, visitValue: value}
}

// Extract reads the field value. It reports false when the side the field
// belongs to is absent or the field has no accessor.
func (d Descriptor) Extract(patient *domain.Patient, visit *domain.Visit) (any, bool) {
	switch d.Side {
	case SidePatient:
		if patient == nil || d.patientValue == nil {
			return nil, false
		}
		return d.patientValue(*patient), true
	case SideVisit:
		if visit == nil || d.visitValue == nil {
			return nil, false
		}
		return d.visitValue(*visit), true
	}
	return nil, false
}

// Registry is an immutable lookup table of descriptors keyed by logical name.
// It is safe for concurrent use.
type Registry struct {
	fields map[string]Descriptor
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	d, ok := r.fields[name]
	return d, ok
}

// Names returns the registered field names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered fields.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.fields)
}

// Builder collects descriptors before freezing them into a Registry.
type Builder struct {
	fields map[string]Descriptor
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{fields: make(map[string]Descriptor)}
}

// Add registers descriptors, replacing any previous entry with the same name.
func (b *Builder) Add(descriptors ...Descriptor) *Builder {
	for _, d := range descriptors {
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		b.fields[d.Name] = d
	}
	return b
}

// AddAttribute registers the attribute field for an attribute type label.
// The logical name replaces spaces in the label with underscores, e.g.
// "Bed Number" on the patient side becomes "p.attr.Bed_Number".
func (b *Builder) AddAttribute(side Side, label string) *Builder {
	label = strings.TrimSpace(label)
	if label == "" {
		return b
	}
	name := AttributeFieldName(side, label)
	mapping := Attribute{Side: side, Label: label}
	if side == SideVisit {
		return b.Add(VisitField(name, mapping, TypeText, func(v domain.Visit) any {
			if value, ok := v.AttributeValue(label); ok {
				return value
			}
			return nil
		}))
	}
	return b.Add(PatientField(name, mapping, TypeText, func(p domain.Patient) any {
		if value, ok := p.AttributeValue(label); ok {
			return value
		}
		return nil
	}))
}

// Build freezes the collected descriptors. The builder may keep being used;
// later additions do not affect registries already built.
func (b *Builder) Build() *Registry {
	fields := make(map[string]Descriptor, len(b.fields))
	for name, d := range b.fields {
		fields[name] = d
	}
	return &Registry{fields: fields}
}

// AttributeFieldName returns the logical field name of an attribute label.
func AttributeFieldName(side Side, label string) string {
	return side.AttributePrefix() + strings.ReplaceAll(strings.TrimSpace(label), " ", "_")
}

// ClassifyName inspects the prefix of a raw logical name. It reports the side
// the name refers to, whether it names an attribute, and whether the prefix
// was recognised at all.
func ClassifyName(name string) (side Side, attribute bool, ok bool) {
	switch {
	case strings.HasPrefix(name, SideVisit.AttributePrefix()):
		return SideVisit, true, true
	case strings.HasPrefix(name, SidePatient.AttributePrefix()):
		return SidePatient, true, true
	case strings.HasPrefix(name, SideVisit.Prefix()):
		return SideVisit, false, true
	case strings.HasPrefix(name, SidePatient.Prefix()):
		return SidePatient, false, true
	}
	return SidePatient, false, false
}
