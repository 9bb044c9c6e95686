package price

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SampleSize is how many of the newest feed entries make up a sample.
const SampleSize = 12

// Cents accepts both quoted and bare JSON numbers. ComEd sends "3.1".
type Cents float64

func (c *Cents) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("empty price")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("error parsing price %s: %w", string(b), err)
	}
	*c = Cents(f)
	return nil
}

type Entry struct {
	MillisUTC json.Number `json:"millisUTC,omitempty"`
	Price     *Cents      `json:"price"`
}

func (e Entry) Time() time.Time {
	ms, err := e.MillisUTC.Int64()
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

type Sample struct {
	Price   float64   `json:"price"`
	Entries int       `json:"entries"`
	Newest  time.Time `json:"newest,omitempty"`
}

// Mean averages the first SampleSize entries and rounds to one decimal.
func Mean(entries []Entry) (Sample, error) {
	if len(entries) == 0 {
		return Sample{}, fmt.Errorf("price feed returned no entries")
	}
	if len(entries) > SampleSize {
		entries = entries[:SampleSize]
	}

	sum := 0.0
	for i, e := range entries {
		if e.Price == nil {
			return Sample{}, fmt.Errorf("entry %d has no price", i)
		}
		sum += float64(*e.Price)
	}

	return Sample{
		Price:   Round(sum/float64(len(entries)), 1),
		Entries: len(entries),
		Newest:  entries[0].Time(),
	}, nil
}

// Round rounds to the nearest decimal representation, ties to even: 0.25 becomes 0.2.
func Round(f float64, decimals int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', decimals, 64), 64)
	if err != nil {
		return f
	}
	return r
}
