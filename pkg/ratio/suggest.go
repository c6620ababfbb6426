package ratio

// Status classifies a failed check
type Status string

const (
	// Weak means the attack did not move the metric enough
	Weak Status = "weak"
	// Strong means the attack moved a metric expected to stay with the clients
	Strong Status = "strong"
)

const (
	minClients       = 20
	minWeakThreads   = 50
	strongHalveAbove = 100
	strongFloorBelow = 10
	strongStep       = 10
	defaultThreads   = 100
)

// SuggestThreads returns the attack thread count for the next run
func SuggestThreads(threads int, status Status) int {
	switch status {
	case Weak:
		if threads < minWeakThreads {
			return minWeakThreads
		}
		return threads * 2
	case Strong:
		if threads > strongHalveAbove {
			return threads / 2
		}
		if threads < strongFloorBelow {
			return 1
		}
		return threads - strongStep
	}
	return defaultThreads
}

// SuggestClients returns the benign client count for the next run, a weak
// traffic check halves the clients so the attack share of the traffic grows
func SuggestClients(clients int, kind MetricKind, status Status) int {
	if kind == TotalTraffic && status == Weak {
		return clients / 2
	}
	if clients < minClients {
		return minClients
	}
	return clients * 2
}

// SuggestMaxClients returns the server max_clients for the next run
func SuggestMaxClients(maxClients int, status Status) int {
	if status == Weak {
		return maxClients * 2
	}
	return maxClients
}
