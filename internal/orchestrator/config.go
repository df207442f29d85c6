package orchestrator

// Config holds the admission constants of §4.4 "Admission constants" and
// the values returned verbatim by register (§4.4).
type Config struct {
	FeePPM                int64
	BaseFeeMsat           int64
	InvoiceExpirySecs     int64
	MinAmountSats         int64
	MaxAmountSats         int64
	MaxPendingPerUser     int64
	MaxConnectionsPerUser int64

	// Network and DaemonName are echoed in the register response.
	Network    string
	DaemonName string
}

func (c Config) minAmountMsat() int64 { return c.MinAmountSats * 1000 }
func (c Config) maxAmountMsat() int64 { return c.MaxAmountSats * 1000 }

// quoteFee computes the fee for an amount per §4.4:
// fee_msat = (amount_msat * fee_ppm) / 1_000_000 + base_fee_msat.
func (c Config) quoteFee(amountMsat int64) int64 {
	return amountMsat*c.FeePPM/1_000_000 + c.BaseFeeMsat
}
