package srt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hanrail/hanrail/internal/rail"
	"github.com/hanrail/hanrail/internal/stations"
)

// seatTypeNames maps the backend's seat-class codes to display names.
var seatTypeNames = map[string]string{
	"1": "일반실",
	"2": "특실",
}

// discountNames maps fare discount codes to display names. Codes not in
// the table render as a generic discount.
var discountNames = map[string]string{
	"000": "어른/청소년",
	"101": "탄력운임기준할인",
	"105": "자유석 할인",
	"106": "입석 할인",
	"107": "역방향석 할인",
	"108": "출입구석 할인",
	"109": "가족석 일반전환 할인",
	"111": "구간별 특정운임",
	"112": "열차별 특정운임",
	"113": "구간별 비율할인(기준)",
	"114": "열차별 비율할인(기준)",
	"121": "공항직결 수색연결운임",
	"131": "구간별 특별할인(기준)",
	"132": "열차별 특별할인(기준)",
	"133": "기본 특별할인(기준)",
	"191": "정차역 할인",
	"192": "매체 할인",
	"201": "어린이",
	"202": "동반유아 할인",
	"204": "경로",
	"205": "1~3급 장애인",
	"206": "4~6급 장애인",
}

// scheduleRecord is one run in the search response.
type scheduleRecord struct {
	TrainTypeCode string `json:"stlbTrnClsfCd"`
	TrainNo       string `json:"trnNo"`

	DepDate      string `json:"dptDt"`
	DepTime      string `json:"dptTm"`
	DepCode      string `json:"dptRsStnCd"`
	DepRunOrder  string `json:"dptStnRunOrdr"`
	DepConsOrder string `json:"dptStnConsOrdr"`

	ArrDate      string `json:"arvDt"`
	ArrTime      string `json:"arvTm"`
	ArrCode      string `json:"arvRsStnCd"`
	ArrRunOrder  string `json:"arvStnRunOrdr"`
	ArrConsOrder string `json:"arvStnConsOrdr"`

	GeneralSeatState string `json:"gnrmRsvPsbStr"`
	SpecialSeatState string `json:"sprmRsvPsbStr"`
	StandbyName      string `json:"rsvWaitPsbCdNm"`
	StandbyCode      string `json:"rsvWaitPsbCd"`
}

// Schedule is an immutable snapshot of one SRT run. Produced fresh on
// every search; never mutated.
type Schedule struct {
	TrainTypeCode string
	TrainTypeName string
	TrainNo       string

	DepDate        string
	DepTime        string
	DepStationCode string
	DepStationName string
	DepRunOrder    string
	DepConsOrder   string

	ArrDate        string
	ArrTime        string
	ArrStationCode string
	ArrStationName string
	ArrRunOrder    string
	ArrConsOrder   string

	GeneralSeatState string
	SpecialSeatState string
	StandbyName      string
	Standby          int
}

func newSchedule(rec scheduleRecord, catalog rail.StationCatalog) *Schedule {
	standby, err := strconv.Atoi(rec.StandbyCode)
	if err != nil {
		standby = -1
	}
	return &Schedule{
		TrainTypeCode:    rec.TrainTypeCode,
		TrainTypeName:    stations.TrainName(rec.TrainTypeCode),
		TrainNo:          rec.TrainNo,
		DepDate:          rec.DepDate,
		DepTime:          rec.DepTime,
		DepStationCode:   rec.DepCode,
		DepStationName:   catalog.Name(rec.DepCode),
		DepRunOrder:      rec.DepRunOrder,
		DepConsOrder:     rec.DepConsOrder,
		ArrDate:          rec.ArrDate,
		ArrTime:          rec.ArrTime,
		ArrStationCode:   rec.ArrCode,
		ArrStationName:   catalog.Name(rec.ArrCode),
		ArrRunOrder:      rec.ArrRunOrder,
		ArrConsOrder:     rec.ArrConsOrder,
		GeneralSeatState: rec.GeneralSeatState,
		SpecialSeatState: rec.SpecialSeatState,
		StandbyName:      rec.StandbyName,
		Standby:          standby,
	}
}

func (s *Schedule) TrainNumber() string   { return s.TrainNo }
func (s *Schedule) DepartureDate() string { return s.DepDate }
func (s *Schedule) DepartureTime() string { return s.DepTime }

func (s *Schedule) GeneralSeatAvailable() bool {
	return strings.Contains(s.GeneralSeatState, "예약가능")
}

func (s *Schedule) SpecialSeatAvailable() bool {
	return strings.Contains(s.SpecialSeatState, "예약가능")
}

func (s *Schedule) StandbyCode() int { return s.Standby }

func (s *Schedule) Describe() string {
	msg := fmt.Sprintf("[%s %s] %s월 %s일, %s~%s(%s:%s~%s:%s) 특실 %s, 일반실 %s",
		s.TrainTypeName, s.TrainNo,
		s.DepDate[4:6], s.DepDate[6:8],
		s.DepStationName, s.ArrStationName,
		s.DepTime[0:2], s.DepTime[2:4], s.ArrTime[0:2], s.ArrTime[2:4],
		s.SpecialSeatState, s.GeneralSeatState)
	if s.Standby >= 0 {
		msg += fmt.Sprintf(", 예약대기 %s", s.StandbyName)
	}
	return msg
}

// Ticket is one issued seat of a reservation.
type Ticket struct {
	PNR string

	Car          string
	SeatNo       string
	SeatTypeCode string
	SeatTypeName string

	DiscountCode string
	DiscountName string

	Price         int
	OriginalPrice int
	Discount      int

	WaitingEntry bool
}

func (t *Ticket) ReservationNumber() string { return t.PNR }

func (t *Ticket) Describe() string {
	if t.WaitingEntry {
		return fmt.Sprintf("예약대기 (%s) %s [%d원(%d원 할인)]",
			t.SeatTypeName, t.DiscountName, t.Price, t.Discount)
	}
	return fmt.Sprintf("%s호차 %s (%s) %s [%d원(%d원 할인)]",
		t.Car, t.SeatNo, t.SeatTypeName, t.DiscountName, t.Price, t.Discount)
}

// Reservation is the server-side booking resource, reconstructed from the
// paired train/payment records of the listing endpoint.
type Reservation struct {
	PNR       string
	TotalCost int
	Seats     int

	TrainTypeCode string
	TrainTypeName string
	TrainNo       string

	DepDate        string
	DepTime        string
	DepStationName string
	ArrTime        string
	ArrStationName string

	PaymentDate string
	PaymentTime string
	Paid        bool
	Running     bool

	TicketList []*Ticket
}

func (r *Reservation) Number() string { return r.PNR }
func (r *Reservation) Price() int     { return r.TotalCost }
func (r *Reservation) SeatCount() int { return r.Seats }

// Waiting reports a standby entry: neither paid nor carrying a payment
// due date/time.
func (r *Reservation) Waiting() bool {
	return !r.Paid && r.PaymentDate == "" && r.PaymentTime == ""
}

func (r *Reservation) Tickets() []*Ticket { return r.TicketList }

func (r *Reservation) Describe() string {
	msg := fmt.Sprintf("[%s] %s월 %s일, %s~%s(%s:%s~%s:%s) %d원(%d석)",
		r.TrainTypeName,
		r.DepDate[4:6], r.DepDate[6:8],
		r.DepStationName, r.ArrStationName,
		r.DepTime[0:2], r.DepTime[2:4], r.ArrTime[0:2], r.ArrTime[2:4],
		r.TotalCost, r.Seats)
	if !r.Paid {
		if r.Waiting() {
			msg += ", 예약대기"
		} else {
			msg += fmt.Sprintf(", 구입기한 %s월 %s일 %s:%s",
				r.PaymentDate[4:6], r.PaymentDate[6:8],
				r.PaymentTime[0:2], r.PaymentTime[2:4])
		}
	}
	if r.Running {
		msg += " (운행중)"
	}
	return msg
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
