// Package stations carries the station and train-type code tables for the
// supported backends. The tables track the backends' apps and change when
// lines open; the booking core only sees them through rail.StationCatalog.
package stations

import "github.com/hanrail/hanrail/internal/rail"

// srtCodes maps station names to SRT reservation-system codes.
var srtCodes = map[string]string{
	"수서":     "0551",
	"동탄":     "0552",
	"평택지제":   "0553",
	"경주":     "0508",
	"곡성":     "0049",
	"공주":     "0514",
	"광주송정":   "0036",
	"구례구":    "0050",
	"김천(구미)": "0507",
	"나주":     "0037",
	"남원":     "0048",
	"대전":     "0010",
	"동대구":    "0015",
	"마산":     "0059",
	"목포":     "0041",
	"밀양":     "0017",
	"부산":     "0020",
	"서대구":    "0506",
	"순천":     "0051",
	"여수EXPO": "0053",
	"여천":     "0139",
	"오송":     "0297",
	"울산(통도사)": "0509",
	"익산":     "0030",
	"전주":     "0045",
	"정읍":     "0033",
	"진영":     "0056",
	"진주":     "0063",
	"창원":     "0057",
	"창원중앙":   "0512",
	"천안아산":   "0502",
	"포항":     "0515",
}

var srtNames = invert(srtCodes)

// trainNames maps train classification codes to display names.
var trainNames = map[string]string{
	"00": "KTX",
	"02": "무궁화",
	"03": "통근열차",
	"04": "누리로",
	"05": "전체",
	"07": "KTX-산천",
	"08": "ITX-새마을",
	"09": "ITX-청춘",
	"10": "KTX-산천",
	"17": "SRT",
	"18": "ITX-마음",
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for name, code := range m {
		out[code] = name
	}
	return out
}

type catalog struct {
	codes map[string]string
	names map[string]string
}

func (c catalog) Code(name string) (string, bool) {
	code, ok := c.codes[name]
	return code, ok
}

func (c catalog) Name(code string) string {
	if name, ok := c.names[code]; ok {
		return name
	}
	return code
}

// SRT returns the catalog for the SRT backend.
func SRT() rail.StationCatalog {
	return catalog{codes: srtCodes, names: srtNames}
}

// TrainName resolves a train classification code to its display name.
func TrainName(code string) string {
	if name, ok := trainNames[code]; ok {
		return name
	}
	return code
}
