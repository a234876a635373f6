package directory

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type ScalarKind int

const (
	ScalarAbsent ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBool
)

// Scalar is an untrusted JSON scalar. Strings, numbers and booleans decode
// into their text form; null, objects and arrays decode as absent so a
// malformed field never fails the whole page.
type Scalar struct {
	Kind ScalarKind
	Text string
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	*s = Scalar{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*s = Scalar{Kind: ScalarString, Text: text}
	case 't', 'f':
		var flag bool
		if err := json.Unmarshal(trimmed, &flag); err != nil {
			return err
		}
		*s = Scalar{Kind: ScalarBool, Text: strconv.FormatBool(flag)}
	case 'n', '{', '[':
		return nil
	default:
		var number json.Number
		if err := json.Unmarshal(trimmed, &number); err != nil {
			return err
		}
		*s = Scalar{Kind: ScalarNumber, Text: number.String()}
	}
	return nil
}

func (s Scalar) Present() bool {
	return s.Kind != ScalarAbsent
}

// Truthy is false for absent, null, "", 0 and false.
func (s Scalar) Truthy() bool {
	switch s.Kind {
	case ScalarString:
		return s.Text != ""
	case ScalarNumber:
		value, err := strconv.ParseFloat(s.Text, 64)
		return err == nil && value != 0
	case ScalarBool:
		return s.Text == "true"
	}
	return false
}

func (s Scalar) String() string {
	return s.Text
}

func (s Scalar) Int() (int, bool) {
	if s.Kind != ScalarNumber && s.Kind != ScalarString {
		return 0, false
	}
	value, err := strconv.ParseFloat(s.Text, 64)
	if err != nil {
		return 0, false
	}
	return int(value), true
}

type RawDepartment struct {
	ID   Scalar `json:"id"`
	Name Scalar `json:"name"`
}

// UnmarshalJSON leaves the department empty when the value is not an object.
func (d *RawDepartment) UnmarshalJSON(data []byte) error {
	*d = RawDepartment{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	type plain RawDepartment
	var decoded plain
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*d = RawDepartment(decoded)
	return nil
}

// RawEmployee is one record as the HR service sends it; every field is optional.
type RawEmployee struct {
	ID         Scalar         `json:"id"`
	FullName   Scalar         `json:"fullName"`
	Position   Scalar         `json:"position"`
	Department *RawDepartment `json:"department"`
	Email      Scalar         `json:"email"`
	Phone      Scalar         `json:"phone"`
	HireDate   Scalar         `json:"hireDate"`
	Status     Scalar         `json:"status"`
	Photo      Scalar         `json:"photo"`
}

type listResponse struct {
	Data  []RawEmployee `json:"data"`
	Total Scalar        `json:"total"`
}

type errorResponse struct {
	Message Scalar `json:"message"`
}
