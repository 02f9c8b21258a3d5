package garden

import "time"

// Fertilization is one fertilizer application in packet time.
type Fertilization struct {
	Fertilizer uint32 `json:"fertilizer"`
	Time       uint64 `json:"time"`
}

// Record is the tracked state of one plot. A record with zero soil and sow
// time is a placeholder created by a care or fertilize on an unknown plot.
type Record struct {
	Identity       Identity        `json:"identity"`
	Soil           uint32          `json:"soil"`
	Seed           uint32          `json:"seed"`
	SowTime        uint64          `json:"sow_time"`
	LastCare       uint64          `json:"last_care"`
	Fertilizations []Fertilization `json:"fertilizations"`
}

func (r Record) IsPlaceholder() bool {
	return r.Soil == 0 && r.SowTime == 0
}

func (r Record) clone() Record {
	out := r
	out.Fertilizations = append([]Fertilization(nil), r.Fertilizations...)
	return out
}

// FertilizeReduction is the share of the remaining growth time removed by one
// fertilizer application.
const FertilizeReduction = 0.00989

// WiltGrace is added after the wilt duration before a plot dies.
const WiltGrace = 24 * 60 * 60

// MaturityTime projects the harvest time in packet seconds. Each fertilizer
// applied before the projection so far shortens the remaining duration,
// sequentially in stored order.
func MaturityTime(r Record, growSeconds uint64) uint64 {
	mature := float64(r.SowTime + growSeconds)
	for _, f := range r.Fertilizations {
		t := float64(f.Time)
		if t >= mature {
			continue
		}
		remaining := mature - t
		mature -= remaining * FertilizeReduction
	}
	return uint64(mature)
}

// WiltTime is the time the plot dies without care, 0 meaning never: no wilt
// duration is known or the plot was never cared for.
func WiltTime(r Record, wiltSeconds uint64) uint64 {
	if wiltSeconds == 0 || r.LastCare == 0 {
		return 0
	}
	return r.LastCare + wiltSeconds + WiltGrace
}

// Estimate is the projected state of a record.
type Estimate struct {
	Record   Record `json:"record"`
	Maturity uint64 `json:"maturity"`
	Wilt     uint64 `json:"wilt"`
}

func (e Estimate) MaturityAt() time.Time { return unixOrZero(e.Maturity) }
func (e Estimate) WiltAt() time.Time     { return unixOrZero(e.Wilt) }

func unixOrZero(sec uint64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}
