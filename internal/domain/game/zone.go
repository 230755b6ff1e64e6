package game

// Zone represents a circular geofence.
type Zone struct {
	ID           string  // Zone ID
	District     string  // District the zone belongs to
	Name         string  // Display name
	Lat          float64 // Center latitude
	Lon          float64 // Center longitude
	RadiusMeters float64 // Radius in meters
	IsDefault    bool    // Default zone of the district
	Active       bool    // Inactive zones are never resolved
}

// Validate checks the zone geometry.
func (z *Zone) Validate() error {
	if err := ValidateCoordinates(z.Lat, z.Lon); err != nil {
		return err
	}
	if z.RadiusMeters <= 0 {
		return Validationf("zone radius must be positive, got %v", z.RadiusMeters)
	}
	return nil
}

// ValidateCoordinates checks latitude and longitude ranges.
func ValidateCoordinates(lat, lon float64) error {
	if lat != lat || lon != lon {
		return Validationf("coordinates must be numbers")
	}
	if lat < -90 || lat > 90 {
		return Validationf("latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return Validationf("longitude %v out of range [-180, 180]", lon)
	}
	return nil
}
