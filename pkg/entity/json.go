package entity

import (
	"encoding/json"
	"time"
)

// jsonValue is the wire representation of Value used when an object
// record is persisted by a store implementation (e.g. store/badgerstore,
// which stores attribute maps as JSON blobs).
type jsonValue struct {
	Kind Kind      `json:"k"`
	B    bool      `json:"b,omitempty"`
	I32  int32     `json:"i32,omitempty"`
	I64  int64     `json:"i64,omitempty"`
	F64  float64   `json:"f64,omitempty"`
	S    string    `json:"s,omitempty"`
	T    time.Time `json:"t,omitempty"`
	IDV  ID        `json:"id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonValue{
		Kind: v.Kind, B: v.B, I32: v.I32, I64: v.I64, F64: v.F64, S: v.S, T: v.T, IDV: v.IDV,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	*v = Value{Kind: jv.Kind, B: jv.B, I32: jv.I32, I64: jv.I64, F64: jv.F64, S: jv.S, T: jv.T, IDV: jv.IDV}
	return nil
}
