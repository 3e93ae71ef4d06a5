package aggregate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tinrooster/tedecom-v1/internal/apperrors"
)

const (
	ParamStartDate    = "startDate"
	ParamEndDate      = "endDate"
	ParamEquipmentIDs = "equipmentIds"
	ParamLocation     = "location"
)

const dateOnly = "2006-01-02"

// dateRange reads startDate/endDate. A date-only endDate covers the whole
// day. When required is false and both are absent, nil is returned.
func dateRange(params map[string]interface{}, required bool) (*DateRange, error) {
	rawStart, hasStart := nonEmpty(params, ParamStartDate)
	rawEnd, hasEnd := nonEmpty(params, ParamEndDate)

	if !hasStart && !hasEnd && !required {
		return nil, nil
	}
	if !hasStart {
		return nil, apperrors.Validationf("aggregate", "%s is required", ParamStartDate)
	}
	if !hasEnd {
		return nil, apperrors.Validationf("aggregate", "%s is required", ParamEndDate)
	}

	start, _, err := parseTime(rawStart)
	if err != nil {
		return nil, apperrors.Validationf("aggregate", "invalid %s: %v", ParamStartDate, err)
	}
	end, isDate, err := parseTime(rawEnd)
	if err != nil {
		return nil, apperrors.Validationf("aggregate", "invalid %s: %v", ParamEndDate, err)
	}
	if isDate {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return nil, apperrors.Validationf("aggregate", "%s is before %s", ParamEndDate, ParamStartDate)
	}

	return &DateRange{Start: start, End: end}, nil
}

func nonEmpty(params map[string]interface{}, key string) (interface{}, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

// parseTime accepts RFC3339 timestamps, YYYY-MM-DD dates and time.Time.
// The bool result reports whether the value was a bare date.
func parseTime(v interface{}) (time.Time, bool, error) {
	switch t := v.(type) {
	case time.Time:
		return t, false, nil
	case string:
		s := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts, false, nil
		}
		if ts, err := time.Parse(dateOnly, s); err == nil {
			return ts, true, nil
		}
		return time.Time{}, false, fmt.Errorf("%q is not an RFC3339 timestamp or YYYY-MM-DD date", s)
	default:
		return time.Time{}, false, fmt.Errorf("unsupported value %v", v)
	}
}

// equipmentIDs reads the optional equipmentIds filter. JSON numbers arrive as
// float64; numeric strings are accepted too.
func equipmentIDs(params map[string]interface{}) ([]uint, error) {
	raw, ok := params[ParamEquipmentIDs]
	if !ok || raw == nil {
		return nil, nil
	}

	var values []interface{}
	switch v := raw.(type) {
	case []interface{}:
		values = v
	case []uint:
		return v, nil
	case []int:
		for _, id := range v {
			values = append(values, id)
		}
	default:
		return nil, apperrors.Validationf("aggregate", "%s must be a list", ParamEquipmentIDs)
	}

	ids := make([]uint, 0, len(values))
	for _, v := range values {
		var id uint64
		var err error
		switch n := v.(type) {
		case float64:
			if n < 0 || n != float64(uint64(n)) {
				err = fmt.Errorf("%v is not a valid id", n)
			}
			id = uint64(n)
		case int:
			if n < 0 {
				err = fmt.Errorf("%d is not a valid id", n)
			}
			id = uint64(n)
		case string:
			id, err = strconv.ParseUint(n, 10, 64)
		default:
			err = fmt.Errorf("%v is not a valid id", v)
		}
		if err != nil {
			return nil, apperrors.Validationf("aggregate", "invalid %s: %v", ParamEquipmentIDs, err)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
