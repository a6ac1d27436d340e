package rules

import "github.com/mitchellh/mapstructure"

// Condition parameter structs, one per predicate family. Keys follow the
// payload schema stored on the rule (camelCase, matching the admin UI).

// MaxDailyLossParams configures the max-daily-loss family. Either key may
// appear alone; pointers distinguish "absent" from zero.
type MaxDailyLossParams struct {
	MaxLoss         *float64 `mapstructure:"maxLoss"`
	MaxDailyPercent *float64 `mapstructure:"maxDailyPercent"`
}

// PositionSizeParams configures the position-size-limit family.
type PositionSizeParams struct {
	MaxPositionPercent float64 `mapstructure:"maxPositionPercent"`
}

// MaxTradesParams configures the max-trades-per-day family.
type MaxTradesParams struct {
	MaxTrades int `mapstructure:"maxTrades"`
}

// ConsecutiveLossParams configures the consecutive-loss-limit family.
type ConsecutiveLossParams struct {
	ConsecutiveLosses int `mapstructure:"consecutiveLosses"`
}

// decodeCondition decodes the opaque condition map into a typed parameter
// struct. Weak typing tolerates numbers stored as strings or floats. A
// decode failure is reported, never raised; callers treat it as
// "not violated".
func decodeCondition(condition map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(condition)
}

// hasKey reports whether a condition key is present, regardless of value.
func hasKey(condition map[string]interface{}, key string) bool {
	_, ok := condition[key]
	return ok
}
