// Package weatherstations holds what every station driver shares.
package weatherstations

// WeatherStation is an interface that provides standard methods for various
// weather station backends
type WeatherStation interface {
	StartWeatherStation() error
	StationName() string
}
