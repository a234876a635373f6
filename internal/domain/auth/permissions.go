package auth

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var Actions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

const (
	ResourceEmployee     = "employee"
	ResourceDashboard    = "dashboard"
	ResourceDepartment   = "department"
	ResourcePayroll      = "payroll"
	ResourceLeave        = "leave"
	ResourceAttendance   = "attendance"
	ResourceCRM          = "crm"
	ResourceInvoice      = "invoice"
	ResourcePurchase     = "purchase"
	ResourceAccounting   = "accounting"
	ResourceSubscription = "subscription"
	ResourceReport       = "report"
	ResourceSettings     = "settings"
)

// Permission is one row of the capability table. The flags are independent:
// update or delete may be granted while read is not.
type Permission struct {
	Type   string `json:"type"`
	Read   bool   `json:"read"`
	Create bool   `json:"create"`
	Update bool   `json:"update"`
	Delete bool   `json:"delete"`
}

func (p Permission) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.Read
	case ActionCreate:
		return p.Create
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	}
	return false
}

// Table is an ordered, read-only capability list. Lookup returns the first
// entry whose type matches exactly; types that are not listed deny every action.
type Table struct {
	entries []Permission
}

func NewTable(entries ...Permission) *Table {
	out := make([]Permission, len(entries))
	copy(out, entries)
	return &Table{entries: out}
}

func (t *Table) Lookup(resourceType string) (Permission, bool) {
	if t != nil {
		for _, entry := range t.entries {
			if entry.Type == resourceType {
				return entry, true
			}
		}
	}
	return Permission{Type: resourceType}, false
}

func (t *Table) Allows(resourceType string, action Action) bool {
	entry, ok := t.Lookup(resourceType)
	if !ok {
		return false
	}
	return entry.Allows(action)
}

func (t *Table) Entries() []Permission {
	if t == nil {
		return []Permission{}
	}
	out := make([]Permission, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Table) Types() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, entry.Type)
	}
	return out
}

// Validate reports blank or duplicated types. Duplicates are tolerated by
// Lookup (first match wins) but shadowed rows are almost always a mistake.
func (t *Table) Validate() error {
	seen := map[string]struct{}{}
	for i, entry := range t.Entries() {
		if strings.TrimSpace(entry.Type) == "" {
			return fmt.Errorf("%w: entry %d", ErrBlankPermissionType, i)
		}
		if _, ok := seen[entry.Type]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatePermission, entry.Type)
		}
		seen[entry.Type] = struct{}{}
	}
	return nil
}

func ParseAction(value string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Actions {
		if action == known {
			return action, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, value)
}

// DefaultTable is the capability table the dashboard ships with. Only the
// employee and dashboard rows reflect observed behavior; the rest are
// placeholders until the module owners confirm them.
var DefaultTable = NewTable(
	Permission{Type: ResourceEmployee, Read: true, Create: true, Update: true, Delete: true},
	Permission{Type: ResourceDashboard, Read: false, Create: true, Update: true, Delete: true},
	// Placeholders.
	Permission{Type: ResourceDepartment, Read: true, Create: true, Update: true, Delete: false},
	Permission{Type: ResourcePayroll, Read: true, Create: false, Update: false, Delete: false},
	Permission{Type: ResourceLeave, Read: true, Create: true, Update: true, Delete: false},
	Permission{Type: ResourceAttendance, Read: true, Create: true, Update: false, Delete: false},
	Permission{Type: ResourceCRM, Read: true, Create: true, Update: true, Delete: true},
	Permission{Type: ResourceInvoice, Read: true, Create: true, Update: true, Delete: false},
	Permission{Type: ResourcePurchase, Read: true, Create: true, Update: false, Delete: false},
	Permission{Type: ResourceAccounting, Read: true, Create: false, Update: false, Delete: false},
	Permission{Type: ResourceSubscription, Read: true, Create: true, Update: true, Delete: true},
	Permission{Type: ResourceReport, Read: true, Create: false, Update: false, Delete: false},
	Permission{Type: ResourceSettings, Read: false, Create: false, Update: true, Delete: false},
)
