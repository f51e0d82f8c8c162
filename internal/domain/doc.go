// Package domain models the industrial site records rendered on the map.
//
// # Data Source
//
// Site records come from the upstream generation step, which reads the
// project CSV, normalizes numbers (ranges, decimal commas, unit noise) and
// writes a JSON array. This service never sees the CSV; it trusts the JSON
// to be parsed and validated already and only guards against coordinates
// that cannot be placed on a map.
//
// # Technology Families
//
// The "techno" column is free text. It is grouped into three families by
// comparing its normalized form (lowercase, alphanumerics only):
//
//	Gas:     biomethane | biogaz | bioco2        → circle markers, capacity in GWh/year
//	eFuels:  efuel* | emethanol | emethane | esaf | ekerosene | eammonia
//	                                             → circle markers, capacity in kt/year
//	Sector:  anything else (CO₂ demand sectors)  → diamond markers, CO₂ potential in t/year
//
// # Operators
//
// Operator names are optional. An absent operator is displayed as the
// sentinel "N/A", and operator search treats it as matching only the query
// "N/A" itself (see the explorer package).
//
// # Marker Sizing
//
// Marker radius scales with a per-family metric. The scaler clamps values to
// the 5th–95th percentile of the metric across the dataset so that a handful
// of very large plants do not flatten everything else; missing values get the
// midpoint radius. See [NewScaler].
//
// # ID Generation
//
// Site IDs are truncated xxhash digests of row|lat|lon. The same dataset
// always yields the same IDs, so a front end can keep marker references
// across service restarts. See [SiteID].
package domain
