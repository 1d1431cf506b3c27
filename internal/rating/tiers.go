package rating

// Eleven rank tiers over fixed rating bands. Recomputed after every rating
// change, no hysteresis.
var tiers = []struct {
	min  int
	name string
}{
	{2000, "Legend"},
	{1800, "Diamond"},
	{1600, "Platinum"},
	{1450, "Gold I"},
	{1300, "Gold II"},
	{1200, "Silver I"},
	{1100, "Silver II"},
	{1000, "Silver III"},
	{900, "Bronze I"},
	{800, "Bronze II"},
	{0, "Bronze III"},
}

// TierForRating is a pure lookup over the tier bands.
func TierForRating(rating int) string {
	for _, t := range tiers {
		if rating >= t.min {
			return t.name
		}
	}
	return "Bronze III"
}

// TierNames lists the tiers from lowest to highest band.
func TierNames() []string {
	names := make([]string, 0, len(tiers))
	for i := len(tiers) - 1; i >= 0; i-- {
		names = append(names, tiers[i].name)
	}
	return names
}
