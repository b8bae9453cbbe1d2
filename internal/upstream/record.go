package upstream

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Record is one upstream resource as decoded from the wire. The service is
// a pass-through aggregator, so unknown attributes must survive merging
// exactly as the owning service returned them; only a handful of fields
// (id, ownerId, role, size, energyLevel) are ever read by name.
type Record map[string]any

func (r Record) ID() string { return r.StringField("id") }

// StringField returns the field as a string, tolerating the JSON number /
// string ambiguity of ids coming from two independently-owned stores.
func (r Record) StringField(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy, used when a composed view annotates a
// record without mutating the fetched original.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}
