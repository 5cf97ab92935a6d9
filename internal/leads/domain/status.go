// Package domain provides core business rules for the leads bounded context.
package domain

// Lead statuses as stored in leads.status.
const (
	StatusNew       = "novo"
	StatusQualified = "qualificado"
	StatusAssigned  = "atribuido"
	StatusConverted = "convertido"
	StatusLost      = "perdido"
)

var knownStatuses = map[string]struct{}{
	StatusNew:       {},
	StatusQualified: {},
	StatusAssigned:  {},
	StatusConverted: {},
	StatusLost:      {},
}

// terminalStatuses are statuses after which the pipeline never touches the lead.
var terminalStatuses = map[string]bool{
	StatusConverted: true,
	StatusLost:      true,
}

func IsKnownStatus(status string) bool {
	_, ok := knownStatuses[status]
	return ok
}

// IsTerminal returns true when no scoring, assignment or follow-up may run.
func IsTerminal(status string) bool {
	return terminalStatuses[status]
}

// StatusAfterQualification keeps an assigned lead assigned when it is rescored.
func StatusAfterQualification(current string) string {
	if current == StatusAssigned {
		return current
	}
	return StatusQualified
}
