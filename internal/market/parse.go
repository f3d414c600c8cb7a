package market

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// flexFloat unmarshals a JSON number that may arrive as a number or a
// quoted string, both of which appear across upstream kline encodings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}

		*f = flexFloat(v)

		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*f = flexFloat(v)

	return nil
}

// flexTime unmarshals a millisecond timestamp encoded as a number or a
// string.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var ms flexFloat
	if err := ms.UnmarshalJSON(data); err != nil {
		return err
	}

	*t = flexTime(time.UnixMilli(int64(ms)).UTC())

	return nil
}

// klineEnvelope is the common wrapper: either {"data": rows} or a bare
// row array.
func klineRows(body []byte) ([]json.RawMessage, error) {
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data, nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataParse, "unrecognized kline envelope", err)
	}

	return rows, nil
}

// klineParser converts one raw row into a candle, returning false when
// the row does not match the parser's shape.
type klineParser func(row json.RawMessage) (types.Candle, bool)

// parseArrayRow handles the [time, open, high, low, close, volume] shape.
func parseArrayRow(row json.RawMessage) (types.Candle, bool) {
	var fields []json.RawMessage
	if err := json.Unmarshal(row, &fields); err != nil || len(fields) < 6 {
		return types.Candle{}, false
	}

	var ts flexTime
	if err := ts.UnmarshalJSON(fields[0]); err != nil {
		return types.Candle{}, false
	}

	values := make([]float64, 5)

	for i := 0; i < 5; i++ {
		var v flexFloat
		if err := v.UnmarshalJSON(fields[i+1]); err != nil {
			return types.Candle{}, false
		}

		values[i] = float64(v)
	}

	return types.Candle{
		Time:   time.Time(ts),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, true
}

// parseObjectRow handles the object shape with either short (o/h/l/c/v/t)
// or long (open/high/.../time) field names.
func parseObjectRow(row json.RawMessage) (types.Candle, bool) {
	var obj struct {
		T      *flexTime  `json:"t"`
		Time   *flexTime  `json:"time"`
		O      *flexFloat `json:"o"`
		Open   *flexFloat `json:"open"`
		H      *flexFloat `json:"h"`
		High   *flexFloat `json:"high"`
		L      *flexFloat `json:"l"`
		Low    *flexFloat `json:"low"`
		C      *flexFloat `json:"c"`
		Close  *flexFloat `json:"close"`
		V      *flexFloat `json:"v"`
		Volume *flexFloat `json:"volume"`
	}

	if err := json.Unmarshal(row, &obj); err != nil {
		return types.Candle{}, false
	}

	pickF := func(short, long *flexFloat) (float64, bool) {
		if short != nil {
			return float64(*short), true
		}

		if long != nil {
			return float64(*long), true
		}

		return 0, false
	}

	open, okO := pickF(obj.O, obj.Open)
	high, okH := pickF(obj.H, obj.High)
	low, okL := pickF(obj.L, obj.Low)
	closePrice, okC := pickF(obj.C, obj.Close)

	if !okO || !okH || !okL || !okC {
		return types.Candle{}, false
	}

	volume, _ := pickF(obj.V, obj.Volume)

	var ts time.Time

	switch {
	case obj.T != nil:
		ts = time.Time(*obj.T)
	case obj.Time != nil:
		ts = time.Time(*obj.Time)
	default:
		return types.Candle{}, false
	}

	return types.Candle{
		Time:   ts,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, true
}

// klineParsers is the ordered list of row parsers tried in sequence.
var klineParsers = []klineParser{parseArrayRow, parseObjectRow}

// parseKlines normalizes a kline response body into chronological candles.
func parseKlines(body []byte) ([]types.Candle, error) {
	rows, err := klineRows(body)
	if err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(rows))

	for _, row := range rows {
		for _, parse := range klineParsers {
			if candle, ok := parse(row); ok {
				candles = append(candles, candle)
				break
			}
		}
	}

	if len(candles) == 0 {
		return nil, errors.New(errors.ErrCodeMarketDataParse, "no parsable kline rows")
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	return candles, nil
}

// parseTickerPrice extracts the last price from the ticker endpoint
// shapes: {"data":{"last":...}}, {"ticker":{"last":...}} or
// {"data":[{"last":...}]}.
func parseTickerPrice(body []byte) (float64, error) {
	var single struct {
		Data   *struct{ Last *flexFloat `json:"last"` } `json:"data"`
		Ticker *struct{ Last *flexFloat `json:"last"` } `json:"ticker"`
	}

	if err := json.Unmarshal(body, &single); err == nil {
		if single.Data != nil && single.Data.Last != nil {
			return float64(*single.Data.Last), nil
		}

		if single.Ticker != nil && single.Ticker.Last != nil {
			return float64(*single.Ticker.Last), nil
		}
	}

	var list struct {
		Data []struct {
			Last *flexFloat `json:"last"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &list); err == nil && len(list.Data) > 0 && list.Data[0].Last != nil {
		return float64(*list.Data[0].Last), nil
	}

	return 0, errors.New(errors.ErrCodeMarketDataParse, "no last price in ticker response")
}
