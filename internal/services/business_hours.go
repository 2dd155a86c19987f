package services

import (
	"strings"
	"time"

	"github.com/tbourn/go-send-pacer/internal/domain"
)

// clockTime is a parsed "HH:MM" wall-clock time.
type clockTime struct {
	hour, minute int
}

func parseClock(s string) (clockTime, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return clockTime{}, false
	}
	return clockTime{hour: t.Hour(), minute: t.Minute()}, true
}

// loadLocation resolves an IANA zone name; empty means UTC.
func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	return loc, nil
}

// CalculateBusinessHoursSchedule lays recipientCount messages out over
// weekday business-hours windows in the given timezone, starting today when
// now falls inside [start.hour, end.hour) and tomorrow otherwise.
//
// Each eligible day takes min(remaining, ratePerMinute*60*(end.hour-start.hour))
// messages. Saturdays and Sundays are skipped without consuming any count.
// The schedule is a preview and does not consult live quota state. Schedules
// needing more than MaxScheduleDays business days are rejected.
func CalculateBusinessHoursSchedule(now time.Time, recipientCount, ratePerMinute int, timezone string, hours domain.BusinessHours) (domain.BusinessHoursSchedule, error) {
	if recipientCount < 0 || recipientCount > MaxRecipientCount {
		return domain.BusinessHoursSchedule{}, ErrInvalidRecipientCount
	}
	if ratePerMinute < 1 || ratePerMinute > MaxRatePerMinute {
		return domain.BusinessHoursSchedule{}, ErrInvalidRate
	}
	start, okStart := parseClock(hours.Start)
	end, okEnd := parseClock(hours.End)
	if !okStart || !okEnd {
		return domain.BusinessHoursSchedule{}, ErrInvalidBusinessHours
	}
	span := end.hour - start.hour
	if span <= 0 {
		return domain.BusinessHoursSchedule{}, ErrInvalidBusinessHours
	}
	loc, err := loadLocation(timezone)
	if err != nil {
		return domain.BusinessHoursSchedule{}, err
	}

	perDay := ratePerMinute * 60 * span
	if ceilDiv(recipientCount, perDay) > MaxScheduleDays {
		return domain.BusinessHoursSchedule{}, ErrScheduleTooLong
	}

	local := now.In(loc)
	y, m, d := local.Date()
	if h := local.Hour(); h < start.hour || h >= end.hour {
		d++
	}

	batches := make([]domain.BusinessHoursBatch, 0, ceilDiv(recipientCount, perDay))
	remaining := recipientCount
	for offset := 0; remaining > 0; offset++ {
		day := time.Date(y, m, d+offset, 0, 0, 0, 0, loc)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		n := min(remaining, perDay)
		batches = append(batches, domain.BusinessHoursBatch{
			StartTime:    time.Date(y, m, d+offset, start.hour, start.minute, 0, 0, loc),
			EndTime:      time.Date(y, m, d+offset, end.hour, end.minute, 0, 0, loc),
			MessageCount: n,
		})
		remaining -= n
	}

	return domain.BusinessHoursSchedule{
		ScheduledBatches: batches,
		TotalDays:        len(batches),
	}, nil
}
