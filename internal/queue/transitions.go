package queue

import "qms/ticket-queue/internal/models"

// transitionMap lists, per outcome, the statuses a ticket may hold before the
// outcome is written. Outcomes are written once.
var transitionMap = map[string][]string{
	models.StatusAttend: {models.StatusEmpty},
	models.StatusAbsent: {models.StatusEmpty},
}

func ValidOutcome(outcome string) bool {
	_, ok := transitionMap[outcome]
	return ok
}

func ValidTransition(outcome, fromStatus string) bool {
	allowed, ok := transitionMap[outcome]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
