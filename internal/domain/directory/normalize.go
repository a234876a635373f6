package directory

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	hireDateLayout = "2006-01-02"

	// maxDateMillis bounds Unix-millisecond hire dates to ±100,000,000 days.
	maxDateMillis = 8.64e15
)

var hireDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	hireDateLayout,
}

// Normalize maps an untrusted record onto the canonical Employee. It never
// fails; missing data is replaced by the documented defaults.
func Normalize(raw RawEmployee) Employee {
	return Employee{
		ID:           raw.ID.String(),
		Name:         raw.FullName.String(),
		Position:     raw.Position.String(),
		Department:   departmentName(raw.Department),
		Email:        raw.Email.String(),
		Phone:        raw.Phone.String(),
		HireDate:     FormatHireDate(raw.HireDate),
		Status:       NormalizeStatus(raw.Status),
		ContractType: ContractFullTime,
		Roles:        []Role{},
		Photo:        raw.Photo.String(),
	}
}

func NormalizeAll(raws []RawEmployee) []Employee {
	out := make([]Employee, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw))
	}
	return out
}

// FormatHireDate renders the UTC calendar date of value as YYYY-MM-DD, or ""
// when the value is missing or not a date. Numbers are Unix milliseconds.
func FormatHireDate(value Scalar) string {
	switch value.Kind {
	case ScalarString:
		text := strings.TrimSpace(value.Text)
		if text == "" {
			return ""
		}
		for _, layout := range hireDateLayouts {
			if parsed, err := time.Parse(layout, text); err == nil {
				return formatDate(parsed)
			}
		}
	case ScalarNumber:
		millis, err := strconv.ParseFloat(value.Text, 64)
		if err != nil || math.IsNaN(millis) || math.Abs(millis) > maxDateMillis {
			return ""
		}
		return formatDate(time.UnixMilli(int64(millis)))
	}
	return ""
}

// formatDate returns "" for dates whose UTC year does not fit in four digits.
func formatDate(t time.Time) string {
	t = t.UTC()
	if year := t.Year(); year < 0 || year > 9999 {
		return ""
	}
	return t.Format(hireDateLayout)
}

// NormalizeStatus defaults falsy and unrecognized values to SUSPENDED.
func NormalizeStatus(value Scalar) string {
	if !value.Truthy() {
		return StatusSuspended
	}
	status := strings.ToUpper(strings.TrimSpace(value.Text))
	status = strings.NewReplacer(" ", "_", "-", "_").Replace(status)
	if IsStatus(status) {
		return status
	}
	return StatusSuspended
}

func departmentName(dep *RawDepartment) string {
	if dep == nil || !dep.Name.Truthy() {
		return DepartmentNotAvailable
	}
	return dep.Name.String()
}
