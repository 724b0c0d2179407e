package refjson

import (
	"encoding/json"
	"reflect"

	"github.com/chanced/jsonx"
)

// RawMessage is a raw, pre-encoded JSON value. Marshal emits it verbatim and
// Unmarshal captures the token subtree into it untouched; it participates in
// no identity tracking even though its underlying kind is a slice.
type RawMessage = jsonx.RawMessage

var (
	numberType     = reflect.TypeOf(json.Number(""))
	ownNumberType  = reflect.TypeOf(Number(""))
	rawMessageType = reflect.TypeOf(RawMessage(nil))
)
