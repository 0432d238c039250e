package srt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/hanrail/hanrail/internal/rail"
	"github.com/hanrail/hanrail/internal/stations"
)

// Job ids distinguishing a personal reservation from a standby entry.
const (
	jobPersonal = "1101"
	jobStandby  = "1102"
)

// windowSeatCode translates the window preference into the seat-attribute
// code the reserve form expects.
func windowSeatCode(pref *bool) string {
	switch {
	case pref == nil:
		return "000"
	case *pref:
		return "012"
	default:
		return "013"
	}
}

// Reserve books seats on the given schedule. When the run has no seat left
// but its standby queue is open, the reservation falls through to a
// standby entry automatically, with notification consent configured when
// the account has a phone number on file.
func (c *Client) Reserve(ctx context.Context, sched rail.Schedule, passengers []rail.Passenger, pref rail.SeatPreference) (rail.Reservation, error) {
	s, err := c.ownSchedule(sched)
	if err != nil {
		return nil, err
	}

	if !s.GeneralSeatAvailable() && !s.SpecialSeatAvailable() && s.Standby >= 0 {
		r, err := c.ReserveStandby(ctx, sched, passengers, pref)
		if err != nil {
			return nil, err
		}
		if c.session.Phone != "" {
			agreeClassChange := pref == rail.GeneralFirst || pref == rail.SpecialFirst
			if err := c.standbyOptions(ctx, r.Number(), true, agreeClassChange, c.session.Phone); err != nil {
				log.Printf("SRT: standby option settings failed for %s: %v", r.Number(), err)
			}
		}
		return r, nil
	}

	return c.reserve(ctx, jobPersonal, s, passengers, pref, false)
}

// ReserveStandby joins the run's waitlist. The "-first" preferences narrow
// to their "-only" counterparts: a standby entry has no fallback class.
func (c *Client) ReserveStandby(ctx context.Context, sched rail.Schedule, passengers []rail.Passenger, pref rail.SeatPreference) (rail.Reservation, error) {
	s, err := c.ownSchedule(sched)
	if err != nil {
		return nil, err
	}
	return c.reserve(ctx, jobStandby, s, passengers, rail.NarrowForStandby(pref), true)
}

func (c *Client) ownSchedule(sched rail.Schedule) (*Schedule, error) {
	s, ok := sched.(*Schedule)
	if !ok {
		return nil, fmt.Errorf("schedule was not produced by this client")
	}
	if s.TrainTypeName != "SRT" {
		return nil, fmt.Errorf("expected an SRT run, got %s", s.TrainTypeName)
	}
	return s, nil
}

// reserve submits the admission-gated write and re-fetches the canonical
// reservation by number; the write response does not carry the full
// record.
func (c *Client) reserve(ctx context.Context, jobID string, s *Schedule, passengers []rail.Passenger, pref rail.SeatPreference, standby bool) (rail.Reservation, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}

	combined, err := rail.Prepare(passengers)
	if err != nil {
		return nil, err
	}

	special := rail.UseSpecialClass(s, pref, standby)

	key, err := c.gate.Run(ctx)
	if err != nil {
		return nil, err
	}

	trainNo := s.TrainNo
	if n, err := strconv.Atoi(trainNo); err == nil {
		trainNo = fmt.Sprintf("%05d", n)
	}

	form := url.Values{
		"jobId":           {jobID},
		"jrnyCnt":         {"1"},
		"jrnyTpCd":        {"11"},
		"jrnySqno1":       {"001"},
		"stndFlg":         {"N"},
		"trnGpCd1":        {"300"},
		"trnGpCd":         {"109"},
		"grpDv":           {"0"},
		"rtnDv":           {"0"},
		"stlbTrnClsfCd1":  {s.TrainTypeCode},
		"dptRsStnCd1":     {s.DepStationCode},
		"dptRsStnCdNm1":   {s.DepStationName},
		"arvRsStnCd1":     {s.ArrStationCode},
		"arvRsStnCdNm1":   {s.ArrStationName},
		"dptDt1":          {s.DepDate},
		"dptTm1":          {s.DepTime},
		"arvTm1":          {s.ArrTime},
		"trnNo1":          {trainNo},
		"runDt1":          {s.DepDate},
		"dptStnConsOrdr1": {s.DepConsOrder},
		"arvStnConsOrdr1": {s.ArrConsOrder},
		"dptStnRunOrdr1":  {s.DepRunOrder},
		"arvStnRunOrdr1":  {s.ArrRunOrder},
		"netfunnelKey":    {key},
	}
	if standby {
		form.Set("mblPhone", c.session.Phone)
	} else {
		form.Set("reserveType", "11")
	}

	form.Set("totPrnb", strconv.Itoa(rail.Total(combined)))
	form.Set("psgGridcnt", strconv.Itoa(len(combined)))
	form.Set("locSeatAttCd1", windowSeatCode(c.windowSeat))
	form.Set("rqSeatAttCd1", "015")
	form.Set("dirSeatAttCd1", "009")
	form.Set("smkSeatAttCd1", "000")
	form.Set("etcSeatAttCd1", "000")
	if special {
		form.Set("psrmClCd1", "2")
	} else {
		form.Set("psrmClCd1", "1")
	}
	for i, p := range combined {
		form.Set(fmt.Sprintf("psgTpCd%d", i+1), srtTypeCodes[p.Category])
		form.Set(fmt.Sprintf("psgInfoPerPrnb%d", i+1), strconv.Itoa(p.Count))
	}

	var payload struct {
		ReservList []struct {
			PNR string `json:"pnrNo"`
		} `json:"reservListMap"`
	}
	if err := c.execute(ctx, pathReserve, form, &payload); err != nil {
		return nil, err
	}
	if len(payload.ReservList) == 0 {
		return nil, rail.ErrReservationNotFound
	}
	pnr := payload.ReservList[0].PNR

	reservations, err := c.Reservations(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range reservations {
		if r.Number() == pnr {
			return r, nil
		}
	}
	return nil, rail.ErrReservationNotFound
}

// standbyOptions configures a standby entry's notification consent.
func (c *Client) standbyOptions(ctx context.Context, pnr string, agreeSMS, agreeClassChange bool, phone string) error {
	yn := func(b bool) string {
		if b {
			return "Y"
		}
		return "N"
	}
	tel := ""
	if agreeSMS {
		tel = phone
	}
	form := url.Values{
		"pnrNo":        {pnr},
		"psrmClChgFlg": {yn(agreeClassChange)},
		"smsSndFlg":    {yn(agreeSMS)},
		"telNo":        {tel},
	}
	_, err := c.post(ctx, pathStandbyOption, form, nil)
	return err
}

// Reservations lists the account's current reservations with their
// materialized tickets.
func (c *Client) Reservations(ctx context.Context) ([]rail.Reservation, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}

	var payload struct {
		TrainList []struct {
			PNR            string `json:"pnrNo"`
			ReceivedAmount string `json:"rcvdAmt"`
			TicketCount    string `json:"tkSpecNum"`
			SeatCount      string `json:"seatNum"`
		} `json:"trainListMap"`
		PayList []struct {
			TrainTypeCode string `json:"stlbTrnClsfCd"`
			TrainNo       string `json:"trnNo"`
			DepDate       string `json:"dptDt"`
			DepTime       string `json:"dptTm"`
			DepCode       string `json:"dptRsStnCd"`
			ArrTime       string `json:"arvTm"`
			ArrCode       string `json:"arvRsStnCd"`
			PaymentDate   string `json:"iseLmtDt"`
			PaymentTime   string `json:"iseLmtTm"`
			Settled       string `json:"stlFlg"`
		} `json:"payListMap"`
	}
	if err := c.execute(ctx, pathTickets, url.Values{"pageNo": {"0"}}, &payload); err != nil {
		return nil, err
	}

	n := len(payload.TrainList)
	if len(payload.PayList) < n {
		n = len(payload.PayList)
	}

	out := make([]rail.Reservation, 0, n)
	for i := 0; i < n; i++ {
		train, pay := payload.TrainList[i], payload.PayList[i]

		seats := atoiOr(train.TicketCount, 0)
		if seats == 0 {
			seats = atoiOr(train.SeatCount, 0)
		}

		tickets, err := c.ticketInfo(ctx, train.PNR)
		if err != nil {
			return nil, err
		}

		out = append(out, &Reservation{
			PNR:            train.PNR,
			TotalCost:      atoiOr(train.ReceivedAmount, 0),
			Seats:          seats,
			TrainTypeCode:  pay.TrainTypeCode,
			TrainTypeName:  stations.TrainName(pay.TrainTypeCode),
			TrainNo:        pay.TrainNo,
			DepDate:        pay.DepDate,
			DepTime:        pay.DepTime,
			DepStationName: c.catalog.Name(pay.DepCode),
			ArrTime:        pay.ArrTime,
			ArrStationName: c.catalog.Name(pay.ArrCode),
			PaymentDate:    pay.PaymentDate,
			PaymentTime:    pay.PaymentTime,
			Paid:           pay.Settled == "Y",
			// The listing omits the issued-ticket count for runs already
			// under way.
			Running:    train.TicketCount == "",
			TicketList: tickets,
		})
	}
	return out, nil
}

// ticketInfo fetches the per-seat detail of one reservation.
func (c *Client) ticketInfo(ctx context.Context, pnr string) ([]*Ticket, error) {
	var payload struct {
		TrainList []struct {
			Car           string `json:"scarNo"`
			SeatNo        string `json:"seatNo"`
			SeatTypeCode  string `json:"psrmClCd"`
			DiscountCode  string `json:"dcntKndCd"`
			Price         string `json:"rcvdAmt"`
			OriginalPrice string `json:"stdrPrc"`
			Discount      string `json:"dcntPrc"`
		} `json:"trainListMap"`
	}
	form := url.Values{"pnrNo": {pnr}, "jrnySqno": {"1"}}
	if err := c.execute(ctx, pathTicketInfo, form, &payload); err != nil {
		return nil, err
	}

	tickets := make([]*Ticket, 0, len(payload.TrainList))
	for _, rec := range payload.TrainList {
		name := discountNames[rec.DiscountCode]
		if name == "" {
			name = "기타 할인"
		}
		tickets = append(tickets, &Ticket{
			PNR:           pnr,
			Car:           rec.Car,
			SeatNo:        rec.SeatNo,
			SeatTypeCode:  rec.SeatTypeCode,
			SeatTypeName:  seatTypeNames[rec.SeatTypeCode],
			DiscountCode:  rec.DiscountCode,
			DiscountName:  name,
			Price:         atoiOr(rec.Price, 0),
			OriginalPrice: atoiOr(rec.OriginalPrice, 0),
			Discount:      atoiOr(rec.Discount, 0),
			WaitingEntry:  rec.SeatNo == "",
		})
	}
	return tickets, nil
}

// Cancel destroys an unpaid reservation.
func (c *Client) Cancel(ctx context.Context, r rail.Reservation) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	key, err := c.gate.Run(ctx)
	if err != nil {
		return err
	}
	form := url.Values{
		"pnrNo":        {r.Number()},
		"jrnyCnt":      {"1"},
		"rsvChgTno":    {"0"},
		"netfunnelKey": {key},
	}
	return c.execute(ctx, pathCancel, form, nil)
}

// Pay settles a reservation with a credit card. The payment endpoint uses
// its own response framing (dsOutput0) instead of the generic envelope.
func (c *Client) Pay(ctx context.Context, r rail.Reservation, card rail.Card) error {
	if err := c.requireLogin(); err != nil {
		return err
	}

	own, ok := r.(*Reservation)
	if !ok {
		return fmt.Errorf("reservation was not produced by this client")
	}

	cardType, err := card.Type()
	if err != nil {
		return err
	}

	key, err := c.gate.Run(ctx)
	if err != nil {
		return err
	}

	form := url.Values{
		"stlDmnDt":        {c.now().In(rail.KST).Format("20060102")},
		"mbCrdNo":         {c.session.MembershipNumber},
		"stlMnsSqno1":     {"1"},
		"ststlGridcnt":    {"1"},
		"totNewStlAmt":    {strconv.Itoa(own.TotalCost)},
		"athnDvCd1":       {cardType},
		"vanPwd1":         {card.Password},
		"crdVlidTrm1":     {card.Expiry},
		"stlMnsCd1":       {"02"},
		"rsvChgTno":       {"0"},
		"chgMcs":          {"0"},
		"ismtMnthNum1":    {strconv.Itoa(card.Installments)},
		"ctlDvCd":         {"3102"},
		"cgPsId":          {"korail"},
		"pnrNo":           {own.PNR},
		"totPrnb":         {strconv.Itoa(own.Seats)},
		"mnsStlAmt1":      {strconv.Itoa(own.TotalCost)},
		"crdInpWayCd1":    {"@"},
		"athnVal1":        {card.Validation},
		"stlCrCrdNo1":     {card.Number},
		"jrnyCnt":         {"1"},
		"strJobId":        {"3102"},
		"inrecmnsGridcnt": {"1"},
		"dptTm":           {own.DepTime},
		"arvTm":           {own.ArrTime},
		"dptStnConsOrdr2": {"000000"},
		"arvStnConsOrdr2": {"000000"},
		"trnGpCd":         {"300"},
		"pageNo":          {"-"},
		"rowCnt":          {"-"},
		"pageUrl":         {""},
		"netfunnelKey":    {key},
	}

	body, err := c.post(ctx, pathPayment, form, nil)
	if err != nil {
		return err
	}

	var payload struct {
		OutDataSets struct {
			Output0 []struct {
				Result  string `json:"strResult"`
				MsgCode string `json:"msgCd"`
				MsgText string `json:"msgTxt"`
			} `json:"dsOutput0"`
		} `json:"outDataSets"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("undecodable payment response: %w", err)
	}
	if len(payload.OutDataSets.Output0) == 0 {
		return fmt.Errorf("payment response carries no result")
	}
	if status := payload.OutDataSets.Output0[0]; status.Result == "FAIL" {
		return c.classify(status.MsgCode, status.MsgText)
	}
	return nil
}

// reserveInfo fetches the original sale record needed by Refund. The
// endpoint identifies the reservation through the Referer header.
func (c *Client) reserveInfo(ctx context.Context, pnr string) (map[string]string, error) {
	headers := map[string]string{"Referer": c.baseURL + pathReserveInfoRef + pnr}
	body, err := c.post(ctx, pathReserveInfo, url.Values{}, headers)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ErrorCode   string `json:"ErrorCode"`
		ErrorMsg    string `json:"ErrorMsg"`
		OutDataSets struct {
			Output1 []map[string]string `json:"dsOutput1"`
		} `json:"outDataSets"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("undecodable reservation detail: %w", err)
	}
	if payload.ErrorCode != "0" || payload.ErrorMsg != "" {
		return nil, &rail.ResponseError{Code: payload.ErrorCode, Message: payload.ErrorMsg}
	}
	if len(payload.OutDataSets.Output1) == 0 {
		return nil, rail.ErrReservationNotFound
	}
	return payload.OutDataSets.Output1[0], nil
}

// Refund returns an issued ticket to the original payment method.
func (c *Client) Refund(ctx context.Context, t rail.Ticket) error {
	if err := c.requireLogin(); err != nil {
		return err
	}

	info, err := c.reserveInfo(ctx, t.ReservationNumber())
	if err != nil {
		return err
	}

	key, err := c.gate.Run(ctx)
	if err != nil {
		return err
	}

	form := url.Values{
		"pnr_no":       {info["pnrNo"]},
		"cnc_dmn_cont": {"승차권 환불로 취소"},
		"saleDt":       {info["ogtkSaleDt"]},
		"saleWctNo":    {info["ogtkSaleWctNo"]},
		"saleSqno":     {info["ogtkSaleSqno"]},
		"tkRetPwd":     {info["ogtkRetPwd"]},
		"psgNm":        {info["buyPsNm"]},
		"netfunnelKey": {key},
	}
	return c.execute(ctx, pathRefund, form, nil)
}
