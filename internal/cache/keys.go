// Package cache implements the result cache port.
package cache

import "strings"

// Cache names, used as key prefixes and metric labels.
const (
	NamePositions  = "positions"
	NameAdvice     = "portfolioAdvice"
	NameSimulation = "portfolioSimulation"
)

// PositionsKey is the key for a user's valued positions.
func PositionsKey(userID string) string {
	return NamePositions + ":" + userID
}

// AdviceKey is the key for a user's portfolio advice.
func AdviceKey(userID string) string {
	return NameAdvice + ":" + userID
}

// SimulationKey is the key for one resolved simulation window.
func SimulationKey(userID, start, end string) string {
	return strings.Join([]string{NameSimulation, userID, start, end}, ":")
}

// SimulationPrefix matches every cached simulation window for a user.
func SimulationPrefix(userID string) string {
	return NameSimulation + ":" + userID + ":"
}

// UserKeys returns the single-value keys derived from a user's positions.
// Simulation windows are evicted by SimulationPrefix.
func UserKeys(userID string) []string {
	return []string{PositionsKey(userID), AdviceKey(userID)}
}
