package datasource

import (
	"encoding/json"

	"github.com/Sternrassler/tweet-datasource/pkg/query"
)

// Recognized request parameter names.
const (
	ParamQuery   = "query"
	ParamType    = "type"
	ParamLang    = "lang"
	ParamSince   = "since"
	ParamUntil   = "until"
	ParamAddress = "address"
	ParamRadius  = "radius"
	ParamUnit    = "unit"
	ParamCount   = "count"
)

// ParamsFromData resolves the envelope into typed search parameters.
//
// The query text is the string payload, falling back to the "query"
// parameter. Parameters of the wrong JSON type are treated as absent; the
// builder and collector substitute defaults for anything absent.
func ParamsFromData(d *Data) query.Params {
	p := query.Params{
		Type:    stringParam(d.Parameters, ParamType),
		Lang:    stringParam(d.Parameters, ParamLang),
		Since:   stringParam(d.Parameters, ParamSince),
		Until:   stringParam(d.Parameters, ParamUntil),
		Address: stringParam(d.Parameters, ParamAddress),
		Radius:  floatParam(d.Parameters, ParamRadius),
		Unit:    stringParam(d.Parameters, ParamUnit),
		Count:   intParam(d.Parameters, ParamCount),
	}

	if len(d.Payload) > 0 {
		var text string
		if json.Unmarshal(d.Payload, &text) == nil {
			p.Query = text
		}
	}
	if p.Query == "" {
		p.Query = stringParam(d.Parameters, ParamQuery)
	}

	return p
}

func stringParam(params map[string]json.RawMessage, name string) string {
	var v string
	if raw, ok := params[name]; ok && json.Unmarshal(raw, &v) == nil {
		return v
	}
	return ""
}

func floatParam(params map[string]json.RawMessage, name string) float64 {
	var v float64
	if raw, ok := params[name]; ok && json.Unmarshal(raw, &v) == nil {
		return v
	}
	return 0
}

func intParam(params map[string]json.RawMessage, name string) int {
	var v int
	if raw, ok := params[name]; ok && json.Unmarshal(raw, &v) == nil {
		return v
	}
	return 0
}
