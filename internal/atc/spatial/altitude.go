package spatial

// AltitudeReference identifies the vertical datum a raw altitude reading is
// expressed against. Everything downstream of ingress assumes AMSL; mixing
// references inside the core is a bug, not a supported mode.
type AltitudeReference string

const (
	// AltitudeAMSL is altitude above mean sea level — already normalized.
	AltitudeAMSL AltitudeReference = "amsl"
	// AltitudeEllipsoidal is height above the WGS-84 ellipsoid, as raw GPS
	// receivers typically report it.
	AltitudeEllipsoidal AltitudeReference = "ellipsoidal"
)

// NormalizeAltitude converts a raw altitude reading to AMSL using a
// configurable geoid offset (ellipsoidal height minus geoid undulation at
// the reporting location). A caller with only a coarse, regionally-averaged
// offset can still call this; it degrades gracefully to a no-op for
// AltitudeAMSL input.
func NormalizeAltitude(raw float64, ref AltitudeReference, geoidOffsetM float64) float64 {
	if ref == AltitudeEllipsoidal {
		return raw - geoidOffsetM
	}
	return raw
}
