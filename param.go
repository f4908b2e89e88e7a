package hamgo

import "github.com/Giulio2002/hamgo/internal/engine"

// Parameter is a named configuration value passed to Create and Open, or
// filled in place by GetParameters. String is used by ParamFilename only.
type Parameter struct {
	Name   uint32
	Value  uint64
	String string
}

// toEngine copies params for an engine call. A nil entry is a caller error.
func toEngine(params []*Parameter) ([]engine.Param, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make([]engine.Param, len(params))
	for i, p := range params {
		if p == nil {
			return nil, invalidArgument("parameter %d is nil", i)
		}
		out[i] = engine.Param{Name: p.Name, Value: p.Value, String: p.String}
	}
	return out, nil
}

// fromEngine writes the values filled by the engine back into params.
func fromEngine(params []*Parameter, filled []engine.Param) {
	for i := range filled {
		params[i].Value = filled[i].Value
		params[i].String = filled[i].String
	}
}
