package korail

import (
	"fmt"
	"strconv"

	"github.com/hanrail/hanrail/internal/rail"
)

// korailTypeCodes maps passenger categories to the backend's txtPsgTpCd
// values. Toddlers and children share a code and differ by discount;
// seniors and disability fares ride on the adult code.
var korailTypeCodes = map[rail.Category]string{
	rail.Adult:          "1",
	rail.Child:          "3",
	rail.Toddler:        "3",
	rail.Senior:         "1",
	rail.Disability1To3: "1",
	rail.Disability4To6: "1",
}

// Standby-queue states carried by h_wait_rsv_flg.
const (
	standbyOpen        = 9
	standbySoldOut     = 0
	standbyNone        = -1
	standbyNotPossible = -2
)

// scheduleRecord is one run in the search response.
type scheduleRecord struct {
	TrainTypeCode string `json:"h_trn_clsf_cd"`
	TrainTypeName string `json:"h_trn_clsf_nm"`
	TrainGroup    string `json:"h_trn_gp_cd"`
	TrainNo       string `json:"h_trn_no"`
	DelayTime     string `json:"h_expct_dlay_hr"`

	DepName string `json:"h_dpt_rs_stn_nm"`
	DepCode string `json:"h_dpt_rs_stn_cd"`
	DepDate string `json:"h_dpt_dt"`
	DepTime string `json:"h_dpt_tm"`

	ArrName string `json:"h_arv_rs_stn_nm"`
	ArrCode string `json:"h_arv_rs_stn_cd"`
	ArrDate string `json:"h_arv_dt"`
	ArrTime string `json:"h_arv_tm"`

	RunDate string `json:"h_run_dt"`

	ReservePossible     string `json:"h_rsv_psb_flg"`
	ReservePossibleName string `json:"h_rsv_psb_nm"`
	SpecialSeatCode     string `json:"h_spe_rsv_cd"`
	GeneralSeatCode     string `json:"h_gen_rsv_cd"`
	StandbyFlag         string `json:"h_wait_rsv_flg"`
}

// Schedule is an immutable snapshot of one Korail run. The seat codes use
// "11" for available.
type Schedule struct {
	TrainTypeCode string
	TrainTypeName string
	TrainGroup    string
	TrainNo       string

	DepDate        string
	DepTime        string
	DepStationCode string
	DepStationName string

	ArrDate        string
	ArrTime        string
	ArrStationCode string
	ArrStationName string

	RunDate string

	GeneralSeatCode string
	SpecialSeatCode string
	Standby         int
}

func newSchedule(rec scheduleRecord) *Schedule {
	standby, err := strconv.Atoi(rec.StandbyFlag)
	if err != nil {
		standby = standbyNone
	}
	return &Schedule{
		TrainTypeCode:   rec.TrainTypeCode,
		TrainTypeName:   rec.TrainTypeName,
		TrainGroup:      rec.TrainGroup,
		TrainNo:         rec.TrainNo,
		DepDate:         rec.DepDate,
		DepTime:         rec.DepTime,
		DepStationCode:  rec.DepCode,
		DepStationName:  rec.DepName,
		ArrDate:         rec.ArrDate,
		ArrTime:         rec.ArrTime,
		ArrStationCode:  rec.ArrCode,
		ArrStationName:  rec.ArrName,
		RunDate:         rec.RunDate,
		GeneralSeatCode: rec.GeneralSeatCode,
		SpecialSeatCode: rec.SpecialSeatCode,
		Standby:         standby,
	}
}

func (s *Schedule) TrainNumber() string   { return s.TrainNo }
func (s *Schedule) DepartureDate() string { return s.DepDate }
func (s *Schedule) DepartureTime() string { return s.DepTime }

func (s *Schedule) GeneralSeatAvailable() bool { return s.GeneralSeatCode == "11" }
func (s *Schedule) SpecialSeatAvailable() bool { return s.SpecialSeatCode == "11" }

// StandbyCode normalizes the wait flag into the shared signed convention:
// only an open queue (9) reads as positive.
func (s *Schedule) StandbyCode() int { return s.Standby }

func (s *Schedule) Describe() string {
	state := func(ok bool) string {
		if ok {
			return "가능"
		}
		return "매진"
	}
	msg := fmt.Sprintf("[%s %s] %s월 %s일, %s~%s(%s:%s~%s:%s) 특실 %s, 일반실 %s",
		s.TrainTypeName, s.TrainNo,
		s.DepDate[4:6], s.DepDate[6:8],
		s.DepStationName, s.ArrStationName,
		s.DepTime[0:2], s.DepTime[2:4], s.ArrTime[0:2], s.ArrTime[2:4],
		state(s.SpecialSeatAvailable()), state(s.GeneralSeatAvailable()))
	if s.Standby >= 0 {
		msg += fmt.Sprintf(", 예약대기 %s", state(s.Standby == standbyOpen))
	}
	return msg
}

// Reservation is one journey leg of the reservation listing. The journey
// bookkeeping fields feed the cancel form verbatim.
type Reservation struct {
	PNR       string
	TotalCost int
	Seats     int

	TrainTypeName  string
	TrainNo        string
	RunDate        string
	DepTime        string
	DepStationName string
	ArrTime        string
	ArrStationName string

	// Payment deadline; the sentinel values 00000000 / 235959 mark a
	// standby entry that has not been allotted a seat yet.
	BuyLimitDate string
	BuyLimitTime string

	JourneyNo    string
	JourneyCount string
	RsvChgNo     string

	// WctNo is returned by the reserve write and consumed by the payment
	// form. Empty on reservations recovered from the listing.
	WctNo string
}

func (r *Reservation) Number() string { return r.PNR }
func (r *Reservation) Price() int     { return r.TotalCost }
func (r *Reservation) SeatCount() int { return r.Seats }

func (r *Reservation) Waiting() bool {
	return r.BuyLimitDate == "00000000" || r.BuyLimitTime == "235959"
}

func (r *Reservation) Describe() string {
	msg := fmt.Sprintf("[%s %s] %s월 %s일, %s~%s(%s:%s~%s:%s) %d원(%d석)",
		r.TrainTypeName, r.TrainNo,
		r.RunDate[4:6], r.RunDate[6:8],
		r.DepStationName, r.ArrStationName,
		r.DepTime[0:2], r.DepTime[2:4], r.ArrTime[0:2], r.ArrTime[2:4],
		r.TotalCost, r.Seats)
	if r.Waiting() {
		msg += ", 예약대기"
	} else {
		msg += fmt.Sprintf(", 구입기한 %s월 %s일 %s:%s",
			r.BuyLimitDate[4:6], r.BuyLimitDate[6:8],
			r.BuyLimitTime[0:2], r.BuyLimitTime[2:4])
	}
	return msg
}

// Ticket is one issued ticket from the ticket listing. The four sale
// fields jointly identify the original sale for refunds.
type Ticket struct {
	PNR string

	TrainTypeName  string
	TrainNo        string
	DepDate        string
	DepTime        string
	DepStationName string
	ArrTime        string
	ArrStationName string

	SeatCount int
	Car       string
	SeatNo    string
	SeatNoEnd string

	BuyerName string
	SaleDate  string
	Price     int

	SaleWctNo   string
	SaleRetDate string
	SaleSeqNo   string
	SaleRetPwd  string
}

func (t *Ticket) ReservationNumber() string { return t.PNR }

// TicketNumber joins the sale fields into the printed ticket number.
func (t *Ticket) TicketNumber() string {
	return fmt.Sprintf("%s-%s-%s-%s", t.SaleWctNo, t.SaleRetDate, t.SaleSeqNo, t.SaleRetPwd)
}

func (t *Ticket) Describe() string {
	msg := fmt.Sprintf("[%s %s] %s월 %s일, %s~%s(%s:%s~%s:%s) => %s호",
		t.TrainTypeName, t.TrainNo,
		t.DepDate[4:6], t.DepDate[6:8],
		t.DepStationName, t.ArrStationName,
		t.DepTime[0:2], t.DepTime[2:4], t.ArrTime[0:2], t.ArrTime[2:4],
		t.Car)
	if t.SeatCount != 1 && t.SeatNoEnd != "" {
		msg += fmt.Sprintf(" %s~%s", t.SeatNo, t.SeatNoEnd)
	} else {
		msg += " " + t.SeatNo
	}
	return msg + fmt.Sprintf(", %d원", t.Price)
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
