package study

import (
	"slices"

	"jadwa/internal/domain"
)

var transitions = map[domain.StudyStatus][]domain.StudyStatus{
	domain.StudyPending:  {domain.StudyQuoted, domain.StudyRejected},
	domain.StudyQuoted:   {domain.StudyQuoted, domain.StudyApproved, domain.StudyRejected},
	domain.StudyApproved: {domain.StudyCompleted},
}

func canTransition(from, to domain.StudyStatus) bool {
	return slices.Contains(transitions[from], to)
}
