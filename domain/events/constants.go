package events

// Event sources identify where events originate from
const (
	// SourceBackend is the primary backend service source
	SourceBackend = "medmap.backend"
)
