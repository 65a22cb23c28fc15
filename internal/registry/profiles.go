package registry

// QosProfile describes one entry of the profile catalog the dashboard offers
// when requesting a boost.
type QosProfile struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// CAMARA QoD profile names with the connectivity tiers they map to.
var qosProfiles = []QosProfile{
	{Name: "QOS_E", Label: "Enhanced", Description: "Low latency profile for interactive workloads"},
	{Name: "QOS_S", Label: "Small", Description: "Modest guaranteed throughput for telemetry and messaging"},
	{Name: "QOS_M", Label: "Medium", Description: "Balanced throughput for video streaming"},
	{Name: "QOS_L", Label: "Large", Description: "High throughput for bulk transfer and broadcast feeds"},
}

// Profiles returns the QoS profile catalog.
func Profiles() []QosProfile {
	out := make([]QosProfile, len(qosProfiles))
	copy(out, qosProfiles)
	return out
}

// ValidProfile reports whether name is part of the catalog.
func ValidProfile(name string) bool {
	for _, p := range qosProfiles {
		if p.Name == name {
			return true
		}
	}
	return false
}
