package normalize

// Contact is a canonical account record produced by normalization.
// Handle is the unique key within a list; ObservedAt is the export-provided
// follow/observation timestamp in Unix seconds, nil when the export carried
// none. Contacts are immutable once produced.
type Contact struct {
	Handle     string `json:"handle"`
	ProfileURL string `json:"profileUrl,omitempty"`
	ObservedAt *int64 `json:"observedAt"`
}

// Ts returns a pointer to v, for building Contact literals.
func Ts(v int64) *int64 { return &v }
