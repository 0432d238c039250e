package korail

import (
	"context"
	"strconv"

	"github.com/hanrail/hanrail/internal/rail"
)

// trainTypeAll selects every train class; the backend filters by operator
// group code.
const trainTypeAll = "109"

// Search issues one availability query. Korail takes station names on the
// wire directly, so no catalog lookup happens here.
func (c *Client) Search(ctx context.Context, q rail.Query) ([]rail.Schedule, error) {
	passengers, err := rail.Prepare(q.Passengers)
	if err != nil {
		return nil, err
	}

	date, depTime := q.DefaultedDateTime(c.now())

	// The search form takes per-category head counts; toddlers share the
	// child bucket and differ only by fare code at reserve time.
	counts := make(map[rail.Category]int)
	for _, p := range passengers {
		counts[p.Category] += p.Count
	}

	form := baseForm()
	form.Del("Key")
	form.Set("Sid", "")
	form.Set("txtMenuId", "11")
	form.Set("radJobId", "1")
	form.Set("selGoTrain", trainTypeAll)
	form.Set("txtTrnGpCd", trainTypeAll)
	form.Set("txtGoStart", q.Departure)
	form.Set("txtGoEnd", q.Arrival)
	form.Set("txtGoAbrdDt", date)
	form.Set("txtGoHour", depTime)
	form.Set("txtPsgFlg_1", strconv.Itoa(counts[rail.Adult]))
	form.Set("txtPsgFlg_2", strconv.Itoa(counts[rail.Child]+counts[rail.Toddler]))
	form.Set("txtPsgFlg_3", strconv.Itoa(counts[rail.Senior]))
	form.Set("txtPsgFlg_4", strconv.Itoa(counts[rail.Disability1To3]))
	form.Set("txtPsgFlg_5", strconv.Itoa(counts[rail.Disability4To6]))
	form.Set("txtSeatAttCd_2", "000")
	form.Set("txtSeatAttCd_3", "000")
	form.Set("txtSeatAttCd_4", "015")
	form.Set("ebizCrossCheck", "N")
	form.Set("srtCheckYn", "N")
	form.Set("rtYn", "N")
	form.Set("adjStnScdlOfrFlg", "N")
	form.Set("mbCrdNo", c.session.MembershipNumber)

	var payload struct {
		TrainInfos struct {
			TrainInfo []scheduleRecord `json:"trn_info"`
		} `json:"trn_infos"`
	}
	if err := c.execute(ctx, "GET", pathSearch, form, &payload); err != nil {
		return nil, err
	}

	var out []rail.Schedule
	for _, rec := range payload.TrainInfos.TrainInfo {
		sched := newSchedule(rec)
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

// matchesFilter applies the composable availability filter: runs with a
// seat always pass, the widening flags OR in sold-out runs and runs with
// an open standby queue.
func matchesFilter(sched *Schedule, q rail.Query) bool {
	if sched.GeneralSeatAvailable() || sched.SpecialSeatAvailable() {
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
