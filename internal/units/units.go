// Package units provides shared constants and conversion for area units.
package units

// Unit constants. Home-range areas are stored and computed in square
// kilometers; hectares are a display conversion.
const (
	KM2 = "km2"
	HA  = "ha"
)

// ValidUnits contains all valid area unit values.
var ValidUnits = []string{KM2, HA}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages.
func GetValidUnitsString() string {
	return "km2, ha"
}

// ConvertArea converts an area from square kilometers to the target units.
// Unknown units fall back to square kilometers.
func ConvertArea(areaKm2 float64, targetUnits string) float64 {
	switch targetUnits {
	case HA:
		return areaKm2 * 100 // 1 km² = 100 ha
	case KM2:
		return areaKm2
	default:
		return areaKm2
	}
}

// ToKm2 converts an area in the given units back to square kilometers.
func ToKm2(area float64, fromUnits string) float64 {
	switch fromUnits {
	case HA:
		return area / 100
	case KM2:
		return area
	default:
		return area
	}
}
