package korail

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hanrail/hanrail/internal/rail"
)

// Job ids distinguishing a personal reservation from a standby entry.
const (
	jobPersonal = "1101"
	jobStandby  = "1102"
)

// Reserve books seats on the given schedule. A run with no seat left but
// an open standby queue falls through to a standby entry automatically.
func (c *Client) Reserve(ctx context.Context, sched rail.Schedule, passengers []rail.Passenger, pref rail.SeatPreference) (rail.Reservation, error) {
	s, err := c.ownSchedule(sched)
	if err != nil {
		return nil, err
	}

	if !s.GeneralSeatAvailable() && !s.SpecialSeatAvailable() && s.Standby >= 0 {
		return c.reserve(ctx, jobStandby, s, passengers, rail.NarrowForStandby(pref), true)
	}
	return c.reserve(ctx, jobPersonal, s, passengers, pref, false)
}

// ReserveStandby joins the run's waitlist. The "-first" preferences narrow
// to their "-only" counterparts; a standby entry has no fallback class.
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
	return s, nil
}

// reserve submits the write behind the admission gate and re-fetches the
// canonical reservation; the write response carries only the number and
// the payment window id.
func (c *Client) reserve(ctx context.Context, jobID string, s *Schedule, passengers []rail.Passenger, pref rail.SeatPreference, standby bool) (rail.Reservation, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}

	combined, err := rail.Prepare(passengers)
	if err != nil {
		return nil, err
	}

	special := rail.UseSpecialClass(s, pref, standby)

	if err := c.admit(ctx); err != nil {
		return nil, err
	}

	form := baseForm()
	form.Set("txtMenuId", "11")
	form.Set("txtJobId", jobID)
	form.Set("txtGdNo", "")
	form.Set("hidFreeFlg", "N")
	form.Set("txtTotPsgCnt", strconv.Itoa(rail.Total(combined)))
	form.Set("txtSeatAttCd1", "000")
	form.Set("txtSeatAttCd2", "000")
	form.Set("txtSeatAttCd3", "000")
	form.Set("txtSeatAttCd4", "015")
	form.Set("txtSeatAttCd5", "000")
	form.Set("txtStndFlg", "N")
	form.Set("txtSrcarCnt", "0")
	form.Set("txtJrnyCnt", "1")
	form.Set("txtJrnySqno1", "001")
	form.Set("txtJrnyTpCd1", "11")
	form.Set("txtDptDt1", s.DepDate)
	form.Set("txtDptRsStnCd1", s.DepStationCode)
	form.Set("txtDptTm1", s.DepTime)
	form.Set("txtArvRsStnCd1", s.ArrStationCode)
	form.Set("txtTrnNo1", s.TrainNo)
	form.Set("txtRunDt1", s.RunDate)
	form.Set("txtTrnClsfCd1", s.TrainTypeCode)
	form.Set("txtTrnGpCd1", s.TrainGroup)
	if special {
		form.Set("txtPsrmClCd1", "2")
	} else {
		form.Set("txtPsrmClCd1", "1")
	}
	form.Set("txtChgFlg1", "")
	for _, field := range []string{
		"txtJrnySqno2", "txtJrnyTpCd2", "txtDptDt2", "txtDptRsStnCd2",
		"txtDptTm2", "txtArvRsStnCd2", "txtTrnNo2", "txtRunDt2",
		"txtTrnClsfCd2", "txtPsrmClCd2", "txtChgFlg2",
	} {
		form.Set(field, "")
	}
	for i, p := range combined {
		idx := strconv.Itoa(i + 1)
		form.Set("txtPsgTpCd"+idx, korailTypeCodes[p.Category])
		form.Set("txtDiscKndCd"+idx, p.DiscountCode)
		form.Set("txtCompaCnt"+idx, strconv.Itoa(p.Count))
		form.Set("txtCardCode_"+idx, p.CardCode)
		form.Set("txtCardNo_"+idx, p.CardNo)
		form.Set("txtCardPw_"+idx, p.CardPw)
	}

	var payload struct {
		PNR   string `json:"h_pnr_no"`
		WctNo string `json:"h_wct_no"`
	}
	if err := c.execute(ctx, "GET", pathReserve, form, &payload); err != nil {
		return nil, err
	}
	if payload.PNR == "" {
		return nil, rail.ErrReservationNotFound
	}

	reservations, err := c.Reservations(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range reservations {
		if r.Number() == payload.PNR {
			r.(*Reservation).WctNo = payload.WctNo
			return r, nil
		}
	}
	return nil, rail.ErrReservationNotFound
}

// Reservations lists the account's current reservations. A no-results
// failure reads as an empty list, not an error.
func (c *Client) Reservations(ctx context.Context) ([]rail.Reservation, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}

	var payload struct {
		JourneyInfos struct {
			JourneyInfo []struct {
				TrainInfos struct {
					TrainInfo []reservationRecord `json:"train_info"`
				} `json:"train_infos"`
			} `json:"jrny_info"`
		} `json:"jrny_infos"`
	}
	err := c.execute(ctx, "GET", pathReservationList, baseForm(), &payload)
	if err != nil {
		if errors.Is(err, rail.ErrNoResults) {
			return nil, nil
		}
		return nil, err
	}

	var out []rail.Reservation
	for _, jrny := range payload.JourneyInfos.JourneyInfo {
		for _, rec := range jrny.TrainInfos.TrainInfo {
			out = append(out, newReservation(rec))
		}
	}
	return out, nil
}

// reservationRecord is one leg in the reservation listing.
type reservationRecord struct {
	scheduleRecord

	PNR          string `json:"h_pnr_no"`
	SeatCount    string `json:"h_tot_seat_cnt"`
	BuyLimitDate string `json:"h_ntisu_lmt_dt"`
	BuyLimitTime string `json:"h_ntisu_lmt_tm"`
	Amount       string `json:"h_rsv_amt"`
	JourneyNo    string `json:"txtJrnySqno"`
	JourneyCount string `json:"txtJrnyCnt"`
	RsvChgNo     string `json:"hidRsvChgNo"`
}

func newReservation(rec reservationRecord) *Reservation {
	journeyNo := rec.JourneyNo
	if journeyNo == "" {
		journeyNo = "001"
	}
	journeyCount := rec.JourneyCount
	if journeyCount == "" {
		journeyCount = "01"
	}
	rsvChgNo := rec.RsvChgNo
	if rsvChgNo == "" {
		rsvChgNo = "00000"
	}
	return &Reservation{
		PNR:            rec.PNR,
		TotalCost:      atoiOr(rec.Amount, 0),
		Seats:          atoiOr(rec.SeatCount, 0),
		TrainTypeName:  rec.TrainTypeName,
		TrainNo:        rec.TrainNo,
		RunDate:        rec.RunDate,
		DepTime:        rec.DepTime,
		DepStationName: rec.DepName,
		ArrTime:        rec.ArrTime,
		ArrStationName: rec.ArrName,
		BuyLimitDate:   rec.BuyLimitDate,
		BuyLimitTime:   rec.BuyLimitTime,
		JourneyNo:      journeyNo,
		JourneyCount:   journeyCount,
		RsvChgNo:       rsvChgNo,
	}
}

// Tickets lists the account's issued tickets, resolving the seat number of
// each through the per-ticket detail call.
func (c *Client) Tickets(ctx context.Context) ([]*Ticket, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}

	form := baseForm()
	form.Set("txtDeviceId", "")
	form.Set("txtIndex", "1")
	form.Set("h_page_no", "1")
	form.Set("h_abrd_dt_from", "")
	form.Set("h_abrd_dt_to", "")
	form.Set("hiduserYn", "Y")

	var payload struct {
		ReservationList []struct {
			TicketList []struct {
				TrainInfo []ticketRecord `json:"train_info"`
			} `json:"ticket_list"`
		} `json:"reservation_list"`
	}
	err := c.execute(ctx, "GET", pathTicketList, form, &payload)
	if err != nil {
		if errors.Is(err, rail.ErrNoResults) {
			return nil, nil
		}
		return nil, err
	}

	var out []*Ticket
	for _, entry := range payload.ReservationList {
		if len(entry.TicketList) == 0 || len(entry.TicketList[0].TrainInfo) == 0 {
			continue
		}
		ticket := newTicket(entry.TicketList[0].TrainInfo[0])
		if seat, err := c.ticketSeat(ctx, ticket); err == nil && seat != "" {
			ticket.SeatNo = seat
			ticket.SeatNoEnd = ""
		}
		out = append(out, ticket)
	}
	return out, nil
}

// ticketRecord is the leading leg of one issued ticket.
type ticketRecord struct {
	scheduleRecord

	PNR       string `json:"h_pnr_no"`
	SeatNoEnd string `json:"h_seat_no_end"`
	SeatCount string `json:"h_seat_cnt"`
	BuyerName string `json:"h_buy_ps_nm"`
	SaleDate  string `json:"h_orgtk_sale_dt"`
	Amount    string `json:"h_rcvd_amt"`
	Car       string `json:"h_srcar_no"`
	SeatNo    string `json:"h_seat_no"`

	SaleWctNo   string `json:"h_orgtk_wct_no"`
	SaleRetDate string `json:"h_orgtk_ret_sale_dt"`
	SaleSeqNo   string `json:"h_orgtk_sale_sqno"`
	SaleRetPwd  string `json:"h_orgtk_ret_pwd"`
}

func newTicket(rec ticketRecord) *Ticket {
	return &Ticket{
		PNR:            rec.PNR,
		TrainTypeName:  rec.TrainTypeName,
		TrainNo:        rec.TrainNo,
		DepDate:        rec.DepDate,
		DepTime:        rec.DepTime,
		DepStationName: rec.DepName,
		ArrTime:        rec.ArrTime,
		ArrStationName: rec.ArrName,
		SeatCount:      atoiOr(rec.SeatCount, 1),
		Car:            rec.Car,
		SeatNo:         rec.SeatNo,
		SeatNoEnd:      rec.SeatNoEnd,
		BuyerName:      rec.BuyerName,
		SaleDate:       rec.SaleDate,
		Price:          atoiOr(rec.Amount, 0),
		SaleWctNo:      rec.SaleWctNo,
		SaleRetDate:    rec.SaleRetDate,
		SaleSeqNo:      rec.SaleSeqNo,
		SaleRetPwd:     rec.SaleRetPwd,
	}
}

// ticketSeat fetches the resolved seat number of one issued ticket.
func (c *Client) ticketSeat(ctx context.Context, t *Ticket) (string, error) {
	form := baseForm()
	form.Set("h_orgtk_wct_no", t.SaleWctNo)
	form.Set("h_orgtk_ret_sale_dt", t.SaleRetDate)
	form.Set("h_orgtk_sale_sqno", t.SaleSeqNo)
	form.Set("h_orgtk_ret_pwd", t.SaleRetPwd)

	var payload struct {
		TicketInfos struct {
			TicketInfo []struct {
				SeatInfo []struct {
					SeatNo string `json:"h_seat_no"`
				} `json:"tk_seat_info"`
			} `json:"ticket_info"`
		} `json:"ticket_infos"`
	}
	if err := c.execute(ctx, "GET", pathTicketSeat, form, &payload); err != nil {
		return "", err
	}
	if len(payload.TicketInfos.TicketInfo) == 0 || len(payload.TicketInfos.TicketInfo[0].SeatInfo) == 0 {
		return "", nil
	}
	return payload.TicketInfos.TicketInfo[0].SeatInfo[0].SeatNo, nil
}

// Cancel destroys an unpaid reservation.
func (c *Client) Cancel(ctx context.Context, r rail.Reservation) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	own, ok := r.(*Reservation)
	if !ok {
		return fmt.Errorf("reservation was not produced by this client")
	}
	if err := c.admit(ctx); err != nil {
		return err
	}
	form := baseForm()
	form.Set("txtPnrNo", own.PNR)
	form.Set("txtJrnySqno", own.JourneyNo)
	form.Set("txtJrnyCnt", own.JourneyCount)
	form.Set("hidRsvChgNo", own.RsvChgNo)
	return c.execute(ctx, "POST", pathCancel, form, nil)
}

// Pay settles a reservation with a credit card. Requires the payment
// window id returned by the reserve write.
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
	if err := c.admit(ctx); err != nil {
		return err
	}

	form := baseForm()
	form.Set("hidPnrNo", own.PNR)
	form.Set("hidWctNo", own.WctNo)
	form.Set("hidTmpJobSqno1", "000000")
	form.Set("hidTmpJobSqno2", "000000")
	form.Set("hidRsvChgNo", "000")
	form.Set("hidInrecmnsGridcnt", "1")
	form.Set("hidStlMnsSqno1", "1")
	form.Set("hidStlMnsCd1", "02")
	form.Set("hidMnsStlAmt1", strconv.Itoa(own.TotalCost))
	form.Set("hidCrdInpWayCd1", "@")
	form.Set("hidStlCrCrdNo1", card.Number)
	form.Set("hidVanPwd1", card.Password)
	form.Set("hidCrdVlidTrm1", card.Expiry)
	form.Set("hidIsmtMnthNum1", strconv.Itoa(card.Installments))
	form.Set("hidAthnDvCd1", cardType)
	form.Set("hidAthnVal1", card.Validation)
	form.Set("hiduserYn", "Y")

	return c.execute(ctx, "POST", pathPay, form, nil)
}

// Refund returns an issued ticket to the original payment method.
func (c *Client) Refund(ctx context.Context, t rail.Ticket) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	own, ok := t.(*Ticket)
	if !ok {
		return fmt.Errorf("ticket was not produced by this client")
	}
	if err := c.admit(ctx); err != nil {
		return err
	}

	form := baseForm()
	form.Set("txtPrnNo", own.PNR)
	form.Set("h_orgtk_sale_dt", own.SaleRetDate)
	form.Set("h_orgtk_sale_wct_no", own.SaleWctNo)
	form.Set("h_orgtk_sale_sqno", own.SaleSeqNo)
	form.Set("h_orgtk_ret_pwd", own.SaleRetPwd)
	form.Set("h_mlg_stl", "N")
	form.Set("tk_ret_tms_dv_cd", "21")
	form.Set("trnNo", own.TrainNo)
	form.Set("pbpAcepTgtFlg", "N")
	form.Set("latitude", "")
	form.Set("longitude", "")
	return c.execute(ctx, "POST", pathRefund, form, nil)
}
