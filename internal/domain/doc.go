// Package domain models road-weather observations, black-ice risk
// calibration, and the freshness of the data sources behind them.
//
// # Data Sources
//
// Every upstream feed is one of a closed set of [Source] kinds. Each kind
// has an expected refresh interval (its freshness threshold) and an
// importance weight used when several sources feed the same answer:
//
//	source        threshold   weight
//	rwis          5 min       2.0    DOT road weather sensors
//	radar         10 min      1.5
//	weather_api   15 min      1.0    Open-Meteo current conditions
//	noaa          30 min      1.0    api.weather.gov station observations
//	satellite     30 min      0.5
//	forecast      60 min      0.3
//	traffic       5 min       0.5
//
// # Freshness Bands
//
// The age of a source's last successful fetch, divided by its threshold,
// selects a band and a confidence multiplier:
//
//	ratio <= 1.0   fresh        1.00
//	ratio <= 1.5   recent       0.95
//	ratio <= 2.0   stale        0.80
//	ratio <= 3.0   very_stale   0.60
//	ratio >  3.0   outdated     0.30
//	never fetched  unknown      0.70
//
// The multipliers of all sources used for an answer are combined as an
// importance-weighted average and applied to the model's raw confidence, so
// the discounted confidence never exceeds the raw one.
//
// # Units
//
// [Conditions] carries metric units (Celsius, m/s, mm/h) because that is
// what the providers return. The BIFI heuristics were tuned in Fahrenheit
// and mph; conversions live in weather.go.
//
// # Calibration
//
// Ground-truth reports map the observed road condition to an expected BIFI
// midpoint (dry 10, wet 40, icy 80, snow 70). When the mean absolute error of
// the last 50 reports exceeds 20 points the [Calibrator] shifts weight from
// time-of-day toward temperature. See [Calibrator.Recalibrate].
package domain
