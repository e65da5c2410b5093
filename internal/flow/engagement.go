package flow

import (
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
)

// Point rewards.
const (
	interactionPoints = 1
	dailyStreakBonus  = 5
	aiResponsePoints  = 3
	followUpPoints    = 2
)

// positiveScale is the lowest rating counted towards the positive streak.
const positiveScale = 7

// lowScale is the rating below which support options are offered.
const lowScale = 5

// calendarDaysBetween counts the day boundaries crossed from a to b in loc.
func calendarDaysBetween(a, b time.Time, loc *time.Location) int {
	y1, m1, d1 := a.In(loc).Date()
	y2, m2, d2 := b.In(loc).Date()
	start := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	end := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// UpdateInteractionStreak advances the daily interaction streak and returns the
// bonus points earned for keeping it alive.
func UpdateInteractionStreak(sess *models.Session, now time.Time, loc *time.Location) int {
	bonus := 0
	if sess.LastInteractionAt == nil {
		sess.InteractionStreak = 1
	} else {
		switch calendarDaysBetween(*sess.LastInteractionAt, now, loc) {
		case 0:
			if sess.InteractionStreak == 0 {
				sess.InteractionStreak = 1
			}
		case 1:
			sess.InteractionStreak++
			bonus = dailyStreakBonus
		default:
			sess.InteractionStreak = 1
		}
	}
	t := now
	sess.LastInteractionAt = &t
	return bonus
}

// UpdatePositiveStreak applies a new rating to the positive-emotion streak.
// Ratings of 7 or more extend the streak when the previous positive day was
// yesterday; several positive ratings on one day count once.
func UpdatePositiveStreak(sess *models.Session, scale int, now time.Time, loc *time.Location) {
	if scale < positiveScale {
		sess.PositiveEmotionStreak = 0
		return
	}
	if sess.LastPositiveEmotionAt == nil {
		sess.PositiveEmotionStreak = 1
	} else {
		switch calendarDaysBetween(*sess.LastPositiveEmotionAt, now, loc) {
		case 0:
			if sess.PositiveEmotionStreak == 0 {
				sess.PositiveEmotionStreak = 1
			}
		case 1:
			sess.PositiveEmotionStreak++
		default:
			sess.PositiveEmotionStreak = 1
		}
	}
	t := now
	sess.LastPositiveEmotionAt = &t
}
