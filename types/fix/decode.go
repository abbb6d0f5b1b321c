package fix

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

var ErrDecodeFix = errors.New("could not decode fix (missing coordinates or time)")

// DecodeTagged decodes one JSON fix object as sent by the companion apps,
// returning the user it belongs to along with the fix. The apps have never
// quite agreed on key names, so this is deliberately tolerant:
// lat/latitude, lon/lng/longitude, altitude/elevation, time as either
// unix seconds, unix milliseconds, or RFC3339.
func DecodeTagged(data []byte) (UserID, RawFix, error) {
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return "", RawFix{}, fmt.Errorf("%w: not an object", ErrDecodeFix)
	}

	user := UserID(firstString(parsed, "user", "userId", "name"))

	lat, latOK := firstNumber(parsed, "lat", "latitude")
	lon, lonOK := firstNumber(parsed, "lon", "lng", "longitude")
	if !latOK || !lonOK {
		return user, RawFix{}, ErrDecodeFix
	}

	t, err := decodeTime(parsed)
	if err != nil {
		return user, RawFix{}, err
	}

	f := RawFix{
		Lat:              lat,
		Lon:              lon,
		AccuracyMeters:   numberOr(parsed, 100, "accuracy"),
		HeadingDeg:       numberOr(parsed, -1, "heading"),
		AltitudeMeters:   numberOr(parsed, 0, "altitude", "elevation"),
		ReportedSpeedMPS: numberOr(parsed, -1, "speed"),
		Time:             t,
	}
	return user, f, nil
}

// Tagged pairs a decoded fix with the user it belongs to.
type Tagged struct {
	User UserID
	Fix  RawFix
}

// DecodeTaggedShotgun decodes a batch of tagged fixes posted as either a
// JSON array or NDJSON lines. Undecodable entries are skipped; the batch
// errors only when nothing decodes.
func DecodeTaggedShotgun(data []byte) ([]Tagged, error) {
	var out []Tagged
	collect := func(raw []byte) {
		user, f, err := DecodeTagged(raw)
		if err != nil {
			return
		}
		out = append(out, Tagged{User: user, Fix: f})
	}

	if parsed := gjson.ParseBytes(data); parsed.IsArray() {
		parsed.ForEach(func(_, value gjson.Result) bool {
			collect([]byte(value.Raw))
			return true
		})
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
				continue
			}
			collect(scanner.Bytes())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeFix, err)
		}
	}
	if len(out) == 0 {
		return nil, ErrDecodeFix
	}
	return out, nil
}

func decodeTime(parsed gjson.Result) (time.Time, error) {
	if res := parsed.Get("unixTime"); res.Exists() {
		return time.Unix(res.Int(), 0), nil
	}
	res := parsed.Get("time")
	if !res.Exists() {
		return time.Time{}, fmt.Errorf("%w: missing time", ErrDecodeFix)
	}
	if res.Type == gjson.Number {
		n := res.Int()
		// Heuristic: epoch-ms values are always > 1e12 in this century.
		if n > 1_000_000_000_000 {
			return time.UnixMilli(n), nil
		}
		return time.Unix(n, 0), nil
	}
	t, err := time.Parse(time.RFC3339, res.String())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDecodeFix, err)
	}
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: zero time", ErrDecodeFix)
	}
	return t, nil
}

func firstString(parsed gjson.Result, keys ...string) string {
	for _, k := range keys {
		if res := parsed.Get(k); res.Exists() {
			return res.String()
		}
	}
	return ""
}

func firstNumber(parsed gjson.Result, keys ...string) (float64, bool) {
	for _, k := range keys {
		if res := parsed.Get(k); res.Exists() && res.Type == gjson.Number {
			return res.Float(), true
		}
	}
	return 0, false
}

func numberOr(parsed gjson.Result, fallback float64, keys ...string) float64 {
	if v, ok := firstNumber(parsed, keys...); ok {
		return v
	}
	return fallback
}
