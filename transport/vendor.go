package transport

// VendorSerial is a transport.Adapter for the Hantas vendor framed serial
// link. It is byte-identical to RTU at the transport layer (same port,
// baud set, and device-id clamp) — the only difference is which framer the
// pipeline selects above it. A "capability-set polymorphism
// over a tagged sum, not inheritance", this is modeled as a thin wrapper
// around RTU rather than a subclass.
type VendorSerial struct {
	*RTU
}

// NewVendorSerial returns an unopened VendorSerial adapter.
func NewVendorSerial(cfg RTUConfig) (*VendorSerial, error) {
	rtu, err := NewRTU(cfg)
	if err != nil {
		return nil, err
	}
	return &VendorSerial{RTU: rtu}, nil
}
