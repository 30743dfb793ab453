package ledgerregistry

// Usage restricts which programs accept a given backend.
type Usage uint8

const (
	// UsageCLI marks backends available to noemactl.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends noema-ledgerd can serve.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
