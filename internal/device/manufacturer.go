package device

import (
	"encoding/binary"
	"fmt"
)

// knownVendors maps Bluetooth SIG company identifiers to vendor names.
var knownVendors = map[uint16]string{
	0x0006: "Microsoft",
	0x004C: "Apple",
	0x0059: "Nordic Semiconductor",
	0x0075: "Samsung",
	0x00E0: "Google",
	0x0131: "Huawei",
	0x02E5: "Espressif",
	0x038F: "Xiaomi",
}

// CompanyID extracts the company identifier from manufacturer data
// (first 2 bytes, little-endian). Reports false when data is too short.
func CompanyID(data []byte) (uint16, bool) {
	if len(data) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(data[0:2]), true
}

// VendorName returns a display name for a company identifier.
// Unknown identifiers are rendered as hex.
func VendorName(id uint16) string {
	if name, ok := knownVendors[id]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", id)
}

// vendorOf returns the vendor advertised in manufacturer data, or "".
func vendorOf(data []byte) string {
	id, ok := CompanyID(data)
	if !ok {
		return ""
	}
	return VendorName(id)
}
