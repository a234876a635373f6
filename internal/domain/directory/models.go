package directory

const (
	StatusActive     = "ACTIVE"
	StatusSuspended  = "SUSPENDED"
	StatusTerminated = "TERMINATED"
	StatusOnLeave    = "ON_LEAVE"
)

const (
	ContractFullTime = "full_time"
	ContractPartTime = "part_time"
	ContractContract = "contract"
)

// DepartmentNotAvailable stands in for records that carry no department.
const DepartmentNotAvailable = "Not available"

var Statuses = []string{StatusActive, StatusSuspended, StatusTerminated, StatusOnLeave}

var ContractTypes = []string{ContractFullTime, ContractPartTime, ContractContract}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Employee is the canonical directory record served to the dashboard.
type Employee struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Position     string `json:"position"`
	Department   string `json:"department"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	HireDate     string `json:"hireDate"`
	Status       string `json:"status"`
	ContractType string `json:"contractType"`
	Roles        []Role `json:"roles"`
	Photo        string `json:"photo,omitempty"`
}

func IsStatus(value string) bool {
	for _, status := range Statuses {
		if value == status {
			return true
		}
	}
	return false
}
