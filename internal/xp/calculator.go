// Package xp computes and records experience points awarded for attendance.
package xp

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/techsoc/backend/internal/models"
)

const (
	// DefaultBaseXP applies to unknown or empty event types.
	DefaultBaseXP = 50
	// MaxSingleDayMultiplier caps the duration bonus of single-day events.
	MaxSingleDayMultiplier = 1.5
	// MaxMultiDayMultiplier caps the duration bonus of multi-day events.
	MaxMultiDayMultiplier = 3.0
)

var baseXP = map[string]int{
	"workshop":    100,
	"hackathon":   300,
	"seminar":     50,
	"talk":        50,
	"competition": 200,
	"meetup":      30,
	"bootcamp":    250,
}

var difficultyMultipliers = map[string]float64{
	"beginner":     1.0,
	"intermediate": 1.25,
	"advanced":     1.5,
}

// BaseXP returns the base reward for an event type.
func BaseXP(eventType string) int {
	if v, ok := baseXP[strings.ToLower(strings.TrimSpace(eventType))]; ok {
		return v
	}
	return DefaultBaseXP
}

// DurationMultiplier rewards longer events. Spans that are unset or reversed
// get no bonus.
func DurationMultiplier(start, end time.Time, multiDay bool) float64 {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 1.0
	}
	hours := end.Sub(start).Hours()
	if multiDay || hours > 24 {
		days := math.Ceil(hours / 24)
		if days < 1 {
			days = 1
		}
		return math.Min(1.5+0.5*(days-1), MaxMultiDayMultiplier)
	}
	if hours <= 2 {
		return 1.0
	}
	return math.Min(1.0+0.1*(hours-2), MaxSingleDayMultiplier)
}

// DifficultyMultiplier returns the bonus for a difficulty level; unknown levels get none.
func DifficultyMultiplier(level string) float64 {
	if v, ok := difficultyMultipliers[strings.ToLower(strings.TrimSpace(level))]; ok {
		return v
	}
	return 1.0
}

// Compute returns the XP an attendee earns for e.
func Compute(e models.Event) int {
	raw := float64(BaseXP(e.EventType)) *
		DurationMultiplier(e.StartTime, e.EndTime, e.IsMultiDay) *
		DifficultyMultiplier(e.DifficultyLevel)
	return int(math.Round(raw))
}

// Describe builds the message shown to the operator after an award.
func Describe(e models.Event, amount int) string {
	if e.Title == "" {
		return fmt.Sprintf("Awarded %d XP", amount)
	}
	return fmt.Sprintf("Awarded %d XP for attending %s", amount, e.Title)
}
