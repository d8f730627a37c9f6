package apis

const (
	// Self-defined Fields
	Address = "address"
)
