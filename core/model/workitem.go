package model

import (
	"fmt"
	"strings"
)

// Source tells where a WorkItem was derived from.
type Source int

const (
	SourceLineItem Source = iota
	SourceExistingTask
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceLineItem:
		return "LineItem"
	case SourceExistingTask:
		return "ExistingTask"
	default:
		return "unknown"
	}
}

// LineItemRef identifies the project line a WorkItem was derived from.
type LineItemRef struct {
	ProjectID string   `json:"project_id"`
	Item      LineItem `json:"item"`
}

// WorkItem is a schedulable unit of labor. It is a projection rebuilt on every
// scheduling session and never persisted. Exactly one of LineItem and Task is
// set, matching Source; the remaining fields are the shared projection used
// by duration resolution and slot search.
type WorkItem struct {
	ID                 string   `json:"id"`
	Source             Source   `json:"source"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	ProjectID          string   `json:"project_id"`
	ProjectAddress     string   `json:"project_address,omitempty"`
	BaseEstimatedHours float64  `json:"base_estimated_hours"`
	RequiredSkill      string   `json:"required_skill,omitempty"`
	Priority           Priority `json:"priority"`
	CurrentAssignees   []string `json:"current_assignees"`

	LineItem *LineItemRef `json:"line_item,omitempty"`
	Task     *Task        `json:"task,omitempty"`
}

// LineItemWorkID returns the catalog identifier of a line-item work item.
func LineItemWorkID(projectID, lineItemID string) string {
	return fmt.Sprintf("li:%s:%s", projectID, lineItemID)
}

// TaskWorkID returns the catalog identifier of a task work item.
func TaskWorkID(taskID string) string {
	return "task:" + taskID
}

// NewLineItemWork projects a labor line item of p into a WorkItem.
func NewLineItemWork(p Project, li LineItem) WorkItem {
	title := strings.TrimSpace(li.Description)
	if title == "" {
		title = fmt.Sprintf("%s labor", p.Name)
	}
	return WorkItem{
		ID:                 LineItemWorkID(p.ID, li.ID),
		Source:             SourceLineItem,
		Title:              title,
		Description:        li.Description,
		ProjectID:          p.ID,
		ProjectAddress:     p.SiteAddress,
		BaseEstimatedHours: li.LaborHours(),
		RequiredSkill:      li.RequiredSkill,
		Priority:           li.Priority,
		LineItem:           &LineItemRef{ProjectID: p.ID, Item: li},
	}
}

// NewTaskWork wraps an existing task into a WorkItem. address is the site
// address of the task's project, possibly empty.
func NewTaskWork(t Task, address string) WorkItem {
	task := t
	task.Assignees = append([]string(nil), t.Assignees...)
	return WorkItem{
		ID:                 TaskWorkID(t.ID),
		Source:             SourceExistingTask,
		Title:              t.Title,
		Description:        t.Description,
		ProjectID:          t.ProjectID,
		ProjectAddress:     address,
		BaseEstimatedHours: t.EstimatedHours,
		Priority:           t.Priority,
		CurrentAssignees:   append([]string(nil), t.Assignees...),
		Task:               &task,
	}
}

// Validate checks the tagged-union shape and the hours invariant.
func (w WorkItem) Validate() error {
	switch w.Source {
	case SourceLineItem:
		if w.LineItem == nil || w.Task != nil {
			return fmt.Errorf("work item %s: line item source requires a line item reference", w.ID)
		}
	case SourceExistingTask:
		if w.Task == nil || w.LineItem != nil {
			return fmt.Errorf("work item %s: task source requires a task", w.ID)
		}
	default:
		return fmt.Errorf("work item %s: unknown source", w.ID)
	}
	if w.BaseEstimatedHours <= 0 {
		return fmt.Errorf("work item %s: estimated hours must be positive", w.ID)
	}
	return nil
}
