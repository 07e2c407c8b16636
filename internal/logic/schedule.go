package logic

import "fmt"

// NextBuzzMinute returns the first minute m >= currentMinute of this hour
// on the schedule (m >= startMinute, (m-startMinute) divisible by interval).
// When none is left this hour it returns startMinute+60, i.e. the first
// scheduled minute of the next hour on a 60-119 scale.
func NextBuzzMinute(currentMinute, startMinute, interval int) int {
	for m := currentMinute; m < 60; m++ {
		if onSchedule(m, startMinute, interval) {
			return m
		}
	}
	return startMinute + 60
}

// ShouldFireNow reports whether a buzz is due at exactly this second.
// It is true only at second 0 of a scheduled minute, so a 1 Hz sampler
// sees it at most once per minute.
func ShouldFireNow(currentMinute, currentSecond, startMinute, interval int) bool {
	return currentSecond == 0 && onSchedule(currentMinute, startMinute, interval)
}

// Countdown returns the time left until the start of the next scheduled
// minute. A scheduled minute that is already under way (second > 0) no
// longer counts as upcoming.
func Countdown(currentMinute, currentSecond, startMinute, interval int) (minutesLeft, secondsLeft int) {
	target := NextBuzzMinute(currentMinute, startMinute, interval)
	if target == currentMinute && currentSecond > 0 {
		target = NextBuzzMinute(currentMinute+1, startMinute, interval)
	}
	left := target*60 - (currentMinute*60 + currentSecond)
	return left / 60, left % 60
}

// CronSpec renders the buzz schedule as a standard five-field cron
// expression selecting the same minutes of every hour.
func CronSpec(startMinute, interval int) string {
	return fmt.Sprintf("%d-59/%d * * * *", startMinute, interval)
}

func onSchedule(minute, startMinute, interval int) bool {
	return minute >= startMinute && (minute-startMinute)%interval == 0
}
