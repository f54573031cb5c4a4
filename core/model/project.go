package model

import "strings"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus int

const (
	ProjectActive ProjectStatus = iota
	ProjectOnHold
	ProjectCompleted
	ProjectCancelled
)

// String returns a human-readable representation of the project status.
func (s ProjectStatus) String() string {
	switch s {
	case ProjectActive:
		return "Active"
	case ProjectOnHold:
		return "OnHold"
	case ProjectCompleted:
		return "Completed"
	case ProjectCancelled:
		return "Cancelled"
	default:
		return "unknown"
	}
}

// ParseProjectStatus converts a status name into a ProjectStatus.
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return ProjectActive, true
	case "onhold", "on_hold":
		return ProjectOnHold, true
	case "completed":
		return ProjectCompleted, true
	case "cancelled", "canceled":
		return ProjectCancelled, true
	default:
		return 0, false
	}
}

// LineItemType classifies a billable project line.
type LineItemType int

const (
	LineItemLabor LineItemType = iota
	LineItemMaterial
	LineItemEquipment
	LineItemOther
)

// String returns the line item type name.
func (t LineItemType) String() string {
	switch t {
	case LineItemLabor:
		return "labor"
	case LineItemMaterial:
		return "material"
	case LineItemEquipment:
		return "equipment"
	case LineItemOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseLineItemType converts a type name into a LineItemType.
func ParseLineItemType(s string) (LineItemType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "labor", "labour":
		return LineItemLabor, true
	case "material":
		return LineItemMaterial, true
	case "equipment":
		return LineItemEquipment, true
	case "other":
		return LineItemOther, true
	default:
		return 0, false
	}
}

// LineItem is one billable entry of a project estimate.
type LineItem struct {
	ID            string       `json:"id"`
	Type          LineItemType `json:"type"`
	Description   string       `json:"description"`
	Hours         float64      `json:"hours"` // hours per unit
	Quantity      float64      `json:"quantity"`
	RequiredSkill string       `json:"required_skill,omitempty"`
	Priority      Priority     `json:"priority"`
}

// LaborHours returns the total labor hours the line item represents.
func (li LineItem) LaborHours() float64 {
	return li.Hours * li.Quantity
}

// Project groups line items for a client site.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	ClientName  string        `json:"client_name"`
	Status      ProjectStatus `json:"status"`
	SiteAddress string        `json:"site_address"`
	LineItems   []LineItem    `json:"line_items"`
}

// IsActive reports whether the project accepts new scheduling.
func (p Project) IsActive() bool {
	return p.Status == ProjectActive
}
