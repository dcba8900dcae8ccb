package models

// RouteConfig is the static course geometry handed to clients verbatim:
// route name to an ordered list of [lat, lng] pairs.
type RouteConfig map[string][][]float64

// DefaultRoutes are the three race routes used when no source is configured.
func DefaultRoutes() RouteConfig {
	return RouteConfig{
		"red":   {{22.3964, 114.1095}, {22.4000, 114.1150}, {22.4050, 114.1200}},
		"green": {{22.3980, 114.1120}, {22.4020, 114.1180}, {22.4070, 114.1250}},
		"blue":  {{22.3950, 114.1100}, {22.4030, 114.1170}, {22.4060, 114.1220}},
	}
}
