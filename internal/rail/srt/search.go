package srt

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hanrail/hanrail/internal/rail"
)

// srtTrainType filters search results to SRT-operated runs; the backend
// also returns connecting KTX legs.
const srtTrainType = "17"

// srtTypeCodes maps passenger categories to the backend's psgTpCd values.
// Toddlers ride on a child fare here.
var srtTypeCodes = map[rail.Category]string{
	rail.Adult:          "1",
	rail.Child:          "5",
	rail.Toddler:        "5",
	rail.Senior:         "4",
	rail.Disability1To3: "2",
	rail.Disability4To6: "3",
}

// Search issues one availability query and maps the response records into
// schedules. The result is filtered by the query's widening flags;
// rail.ErrNoResults when nothing survives.
func (c *Client) Search(ctx context.Context, q rail.Query) ([]rail.Schedule, error) {
	passengers, err := rail.Prepare(q.Passengers)
	if err != nil {
		return nil, err
	}

	depCode, ok := c.catalog.Code(q.Departure)
	if !ok {
		return nil, fmt.Errorf("unknown station %q", q.Departure)
	}
	arrCode, ok := c.catalog.Code(q.Arrival)
	if !ok {
		return nil, fmt.Errorf("unknown station %q", q.Arrival)
	}

	date, depTime := q.DefaultedDateTime(c.now())

	key, err := c.gate.Run(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"chtnDvCd":       {"1"},
		"dptDt":          {date},
		"dptTm":          {depTime},
		"dptDt1":         {date},
		"dptTm1":         {depTime[:2] + "0000"},
		"dptRsStnCd":     {depCode},
		"arvRsStnCd":     {arrCode},
		"stlbTrnClsfCd":  {"05"},
		"trnGpCd":        {"109"},
		"trnNo":          {""},
		"psgNum":         {strconv.Itoa(rail.Total(passengers))},
		"seatAttCd":      {"015"},
		"arriveTime":     {"N"},
		"tkDptDt":        {""},
		"tkDptTm":        {""},
		"tkTrnNo":        {""},
		"tkTripChgFlg":   {""},
		"dlayTnumAplFlg": {"Y"},
		"netfunnelKey":   {key},
	}

	var payload struct {
		OutDataSets struct {
			Output1 []scheduleRecord `json:"dsOutput1"`
		} `json:"outDataSets"`
	}
	if err := c.execute(ctx, pathSearch, form, &payload); err != nil {
		return nil, err
	}

	var out []rail.Schedule
	for _, rec := range payload.OutDataSets.Output1 {
		if rec.TrainTypeCode != srtTrainType {
			continue
		}
		sched := newSchedule(rec, c.catalog)
		if !matchesFilter(sched, q) {
			continue
		}
		if q.TimeLimit != "" && sched.DepTime > q.TimeLimit {
			continue
		}
		out = append(out, sched)
	}

	if len(out) == 0 {
		return nil, rail.ErrNoResults
	}
	return out, nil
}

// matchesFilter applies the composable availability filter: the base
// predicate keeps runs with a seat, the widening flags OR in sold-out
// runs and runs with an open standby slot.
func matchesFilter(sched *Schedule, q rail.Query) bool {
	hasSeat := sched.GeneralSeatAvailable() || sched.SpecialSeatAvailable()
	if hasSeat {
		return true
	}
	if q.IncludeSoldOut {
		return true
	}
	if q.IncludeStandby && rail.StandbyOpen(sched) {
		return true
	}
	return false
}
