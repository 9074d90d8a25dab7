package alert

// ExpiryPriority ranks documents and insurance by days left.
func ExpiryPriority(daysLeft int) Priority {
	switch {
	case daysLeft <= 3:
		return PriorityCritical
	case daysLeft <= 7:
		return PriorityHigh
	case daysLeft <= 15:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func VaccinePriority(daysLeft int) Priority {
	if daysLeft <= 7 {
		return PriorityHigh
	}
	return PriorityMedium
}

func AppointmentPriority(daysLeft int) Priority {
	if daysLeft <= 1 {
		return PriorityHigh
	}
	return PriorityMedium
}
