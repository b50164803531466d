package model

// Field names a canonical task attribute that providers can change.
type Field string

const (
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldDueDate     Field = "due_date"
)

// ChangeSet is the sparse set of canonical values one provider event
// wants to set. Every present value is already in the local vocabulary.
type ChangeSet struct {
	Status      *TaskStatus
	Priority    *TaskPriority
	Title       *string
	Description *string

	// DueDate uses "" to clear the date.
	DueDate *string

	Provider         Provider
	ExternalIssueKey string
	RawEventType     string
}

// SetStatus records a status value.
func (c *ChangeSet) SetStatus(s TaskStatus) { c.Status = &s }

// SetPriority records a priority value.
func (c *ChangeSet) SetPriority(p TaskPriority) { c.Priority = &p }

// SetTitle records a title value.
func (c *ChangeSet) SetTitle(s string) { c.Title = &s }

// SetDescription records a plain text description.
func (c *ChangeSet) SetDescription(s string) { c.Description = &s }

// SetDueDate records a due date, "" meaning cleared.
func (c *ChangeSet) SetDueDate(s string) { c.DueDate = &s }

// Fields lists the fields present, in a fixed order.
func (c ChangeSet) Fields() []Field {
	var out []Field
	if c.Status != nil {
		out = append(out, FieldStatus)
	}
	if c.Priority != nil {
		out = append(out, FieldPriority)
	}
	if c.Title != nil {
		out = append(out, FieldTitle)
	}
	if c.Description != nil {
		out = append(out, FieldDescription)
	}
	if c.DueDate != nil {
		out = append(out, FieldDueDate)
	}
	return out
}

// IsEmpty reports whether the event touched no canonical field.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Fields()) == 0
}

// TaskUpdate is the set of columns a single update statement writes.
// Nil members are left untouched.
type TaskUpdate struct {
	Status      *TaskStatus
	Priority    *TaskPriority
	Title       *string
	Description *string

	// DueDate set to a pointer to "" stores NULL.
	DueDate *string
}

// IsEmpty reports whether the update writes nothing.
func (u TaskUpdate) IsEmpty() bool {
	return u.Status == nil && u.Priority == nil && u.Title == nil &&
		u.Description == nil && u.DueDate == nil
}
