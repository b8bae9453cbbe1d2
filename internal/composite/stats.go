package composite

import "github.com/pawpal/composite-service/internal/upstream"

type AggregateStats struct {
	TotalPrincipals int            `json:"totalPrincipals"`
	TotalDependents int            `json:"totalDependents"`
	ByRole          map[string]int `json:"byRole"`
	BySize          map[string]int `json:"bySize"`
	ByEnergyLevel   map[string]int `json:"byEnergyLevel"`
}

func computeStats(principals, dependents []upstream.Record) *AggregateStats {
	stats := &AggregateStats{
		TotalPrincipals: len(principals),
		TotalDependents: len(dependents),
		ByRole:          map[string]int{},
		BySize:          map[string]int{},
		ByEnergyLevel:   map[string]int{},
	}
	for _, p := range principals {
		stats.ByRole[categoryLabel(p, "role")]++
	}
	for _, d := range dependents {
		stats.BySize[categoryLabel(d, "size")]++
		stats.ByEnergyLevel[categoryLabel(d, "energyLevel")]++
	}
	return stats
}

// categoryLabel buckets missing or empty categorical values as "unknown"
// so grouped counts always sum to the fetched total.
func categoryLabel(rec upstream.Record, key string) string {
	if v := rec.StringField(key); v != "" {
		return v
	}
	return "unknown"
}
