package monitoring

// MoistureLevel buckets a volumetric soil moisture fraction.
type MoistureLevel string

const (
	MoistureVeryDry  MoistureLevel = "veryDry"
	MoistureDry      MoistureLevel = "dry"
	MoistureAdequate MoistureLevel = "adequate"
	MoistureMoist    MoistureLevel = "moist"
)

// IrrigationRecommendation is the advice derived from a moisture level.
type IrrigationRecommendation string

const (
	IrrigateNow  IrrigationRecommendation = "irrigateNow"
	IrrigateSoon IrrigationRecommendation = "irrigateSoon"
	NoIrrigation IrrigationRecommendation = "noIrrigation"
)

// LevelFor classifies moisture, a fraction between 0 and 1.
func LevelFor(moisture float64) MoistureLevel {
	switch {
	case moisture < 0.2:
		return MoistureVeryDry
	case moisture < 0.4:
		return MoistureDry
	case moisture < 0.7:
		return MoistureAdequate
	default:
		return MoistureMoist
	}
}

// RecommendationFor maps a moisture level to irrigation advice.
func RecommendationFor(level MoistureLevel) IrrigationRecommendation {
	switch level {
	case MoistureVeryDry:
		return IrrigateNow
	case MoistureDry:
		return IrrigateSoon
	default:
		return NoIrrigation
	}
}
