// Package schema defines the trip record shape shared by every stage of the
// preparation pipeline: the raw fields read from TLC trip files, the fields
// derived by the cleaning and feature stages, and the Batch that carries
// records together with the set of columns currently present.
//
// Raw fields are pointers because source files leave them empty; derived
// fields are plain values that are only meaningful once the stage producing
// them has run (see Batch.Has).
package schema

import (
	"encoding/binary"
	"math"
	"time"
)

// TimeBucket is the coarse time-of-day category of a timestamp.
type TimeBucket uint8

const (
	BucketUnknown TimeBucket = iota
	BucketMorning
	BucketAfternoon
	BucketEvening
	BucketNight
)

func (b TimeBucket) String() string {
	switch b {
	case BucketMorning:
		return "morning"
	case BucketAfternoon:
		return "afternoon"
	case BucketEvening:
		return "evening"
	case BucketNight:
		return "night"
	default:
		return ""
	}
}

// BucketForHour maps an hour of day to its bucket: morning [6,12),
// afternoon [12,18), evening [18,21), night otherwise.
func BucketForHour(h int) TimeBucket {
	switch {
	case h >= 6 && h < 12:
		return BucketMorning
	case h >= 12 && h < 18:
		return BucketAfternoon
	case h >= 18 && h < 21:
		return BucketEvening
	default:
		return BucketNight
	}
}

// Zone holds the attributes joined from the zone lookup. A nil field means
// the id had no match.
type Zone struct {
	Name        *string
	Borough     *string
	ServiceZone *string
}

// Record is one taxi trip.
type Record struct {
	PickupTime     *time.Time
	DropoffTime    *time.Time
	PickupZoneID   *int64
	DropoffZoneID  *int64
	PassengerCount *int64
	TripDistance   *float64
	FareAmount     *float64
	TotalAmount    *float64

	TripDurationMinutes float64

	PickupZone  Zone
	DropoffZone Zone

	DayOfWeekPickup   int
	HourOfDayPickup   int
	TimeBucketPickup  TimeBucket
	DayOfWeekDropoff  int
	HourOfDayDropoff  int
	TimeBucketDropoff TimeBucket

	// Source and Line locate the record in its input file (Line is 1-based,
	// header excluded). They are not part of the record's identity.
	Source string
	Line   int
}

// Float, Int, Time and String return pointers to their argument; they keep
// record literals in tests and readers short.
func Float(v float64) *float64    { return &v }
func Int(v int64) *int64          { return &v }
func Time(v time.Time) *time.Time { return &v }
func String(v string) *string     { return &v }

// IsNull reports whether the raw column col is empty on r. Derived and
// unknown columns are never null.
func (r *Record) IsNull(col string) bool {
	switch col {
	case ColPickupTime:
		return r.PickupTime == nil
	case ColDropoffTime:
		return r.DropoffTime == nil
	case ColPickupZoneID:
		return r.PickupZoneID == nil
	case ColDropoffZoneID:
		return r.DropoffZoneID == nil
	case ColPassengerCount:
		return r.PassengerCount == nil
	case ColTripDistance:
		return r.TripDistance == nil
	case ColFareAmount:
		return r.FareAmount == nil
	case ColTotalAmount:
		return r.TotalAmount == nil
	case ColZoneNamePickup:
		return r.PickupZone.Name == nil
	case ColBoroughPickup:
		return r.PickupZone.Borough == nil
	case ColServiceZonePickup:
		return r.PickupZone.ServiceZone == nil
	case ColZoneNameDropoff:
		return r.DropoffZone.Name == nil
	case ColBoroughDropoff:
		return r.DropoffZone.Borough == nil
	case ColServiceZoneDropoff:
		return r.DropoffZone.ServiceZone == nil
	}
	return false
}

// Value returns the value of col as a database/sql friendly value: nil for
// nulls, time.Time, int64, float64 or string otherwise.
func (r *Record) Value(col string) any {
	switch col {
	case ColPickupTime:
		return timeValue(r.PickupTime)
	case ColDropoffTime:
		return timeValue(r.DropoffTime)
	case ColPickupZoneID:
		return intValue(r.PickupZoneID)
	case ColDropoffZoneID:
		return intValue(r.DropoffZoneID)
	case ColPassengerCount:
		return intValue(r.PassengerCount)
	case ColTripDistance:
		return floatValue(r.TripDistance)
	case ColFareAmount:
		return floatValue(r.FareAmount)
	case ColTotalAmount:
		return floatValue(r.TotalAmount)
	case ColTripDuration:
		return r.TripDurationMinutes
	case ColZoneNamePickup:
		return stringValue(r.PickupZone.Name)
	case ColBoroughPickup:
		return stringValue(r.PickupZone.Borough)
	case ColServiceZonePickup:
		return stringValue(r.PickupZone.ServiceZone)
	case ColZoneNameDropoff:
		return stringValue(r.DropoffZone.Name)
	case ColBoroughDropoff:
		return stringValue(r.DropoffZone.Borough)
	case ColServiceZoneDropoff:
		return stringValue(r.DropoffZone.ServiceZone)
	case ColDayOfWeekPickup:
		return int64(r.DayOfWeekPickup)
	case ColHourOfDayPickup:
		return int64(r.HourOfDayPickup)
	case ColTimeBucketPickup:
		return r.TimeBucketPickup.String()
	case ColDayOfWeekDropoff:
		return int64(r.DayOfWeekDropoff)
	case ColHourOfDayDropoff:
		return int64(r.HourOfDayDropoff)
	case ColTimeBucketDropoff:
		return r.TimeBucketDropoff.String()
	}
	return nil
}

// Values returns the values of cols in order.
func (r *Record) Values(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = r.Value(c)
	}
	return out
}

func timeValue(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func intValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// AppendRawKey appends a binary encoding of the raw fields of r to dst. Two
// records produce the same key exactly when their raw fields are equal,
// nulls included; provenance is not encoded.
func (r *Record) AppendRawKey(dst []byte) []byte {
	dst = appendTime(dst, r.PickupTime)
	dst = appendTime(dst, r.DropoffTime)
	dst = appendInt(dst, r.PickupZoneID)
	dst = appendInt(dst, r.DropoffZoneID)
	dst = appendInt(dst, r.PassengerCount)
	dst = appendFloat(dst, r.TripDistance)
	dst = appendFloat(dst, r.FareAmount)
	dst = appendFloat(dst, r.TotalAmount)
	return dst
}

// RawEqual reports whether r and o have identical raw fields.
func (r *Record) RawEqual(o *Record) bool {
	return eqTime(r.PickupTime, o.PickupTime) &&
		eqTime(r.DropoffTime, o.DropoffTime) &&
		eqPtr(r.PickupZoneID, o.PickupZoneID) &&
		eqPtr(r.DropoffZoneID, o.DropoffZoneID) &&
		eqPtr(r.PassengerCount, o.PassengerCount) &&
		eqFloat(r.TripDistance, o.TripDistance) &&
		eqFloat(r.FareAmount, o.FareAmount) &&
		eqFloat(r.TotalAmount, o.TotalAmount)
}

func appendTime(dst []byte, p *time.Time) []byte {
	if p == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return binary.LittleEndian.AppendUint64(dst, uint64(p.UnixNano()))
}

func appendInt(dst []byte, p *int64) []byte {
	if p == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return binary.LittleEndian.AppendUint64(dst, uint64(*p))
}

func appendFloat(dst []byte, p *float64) []byte {
	if p == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return binary.LittleEndian.AppendUint64(dst, floatBits(*p))
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func eqPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// eqFloat compares bit patterns so the result agrees with AppendRawKey.
func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return floatBits(*a) == floatBits(*b)
}

// floatBits folds -0 into +0; NaNs keep their bits and so equal themselves.
func floatBits(f float64) uint64 {
	if f == 0 {
		f = 0
	}
	return math.Float64bits(f)
}
