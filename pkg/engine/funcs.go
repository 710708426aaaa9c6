/*
Copyright The Helm Authors.
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package engine

import (
	"fmt"
	"time"

	"github.com/alegeay/Sherpack-sub001/pkg/values"
)

type globalFunc func(ctx *evalCtx, args []interface{}) (interface{}, error)

// globalFuncs holds every bare `name(args...)` call recognized by the
// renderer, independent of any | filter pipeline.
var globalFuncs = map[string]globalFunc{
	"fail": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		msg := "template execution failed"
		if len(args) > 0 {
			msg = toDisplayString(args[0])
		}
		return nil, &RenderError{Kind: KindInvalidOperation, Message: msg}
	},
	"dict": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		if len(args)%2 != 0 {
			return nil, &RenderError{Kind: KindTypeError, Message: "dict: expected an even number of key/value arguments"}
		}
		out := map[string]interface{}{}
		for i := 0; i < len(args); i += 2 {
			out[toDisplayString(args[i])] = args[i+1]
		}
		return out, nil
	},
	"list": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		out := make([]interface{}, len(args))
		copy(out, args)
		return out, nil
	},
	"get": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		if len(args) < 2 {
			return nil, &RenderError{Kind: KindTypeError, Message: "get: expects (object, key[, default])"}
		}
		m, ok := args[0].(map[string]interface{})
		if !ok {
			return nil, &RenderError{Kind: KindTypeError, Message: "get: first argument must be a mapping"}
		}
		key := toDisplayString(args[1])
		if v, found := m[key]; found {
			return v, nil
		}
		if len(args) > 2 {
			return args[2], nil
		}
		return nil, nil
	},
	"coalesce": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		for _, a := range args {
			if values.Truthy(a) {
				return a, nil
			}
		}
		return nil, nil
	},
	"ternary": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		if len(args) != 3 {
			return nil, &RenderError{Kind: KindTypeError, Message: "ternary: expects (trueVal, falseVal, cond)"}
		}
		if values.Truthy(args[2]) {
			return args[0], nil
		}
		return args[1], nil
	},
	"tostring": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		return toDisplayString(argAt(args, 0)), nil
	},
	"toint": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		f, ok := toFloat(argAt(args, 0))
		if !ok {
			return nil, &RenderError{Kind: KindTypeError, Message: "toint: value is not numeric"}
		}
		return float64(int64(f)), nil
	},
	"tofloat": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		f, ok := toFloat(argAt(args, 0))
		if !ok {
			return nil, &RenderError{Kind: KindTypeError, Message: "tofloat: value is not numeric"}
		}
		return f, nil
	},
	"printf": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		if len(args) == 0 {
			return "", nil
		}
		format := toDisplayString(args[0])
		rest := make([]interface{}, len(args)-1)
		for i, a := range args[1:] {
			rest[i] = a
		}
		return fmt.Sprintf(format, rest...), nil
	},
	"now": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		return time.Now().UTC().Format(time.RFC3339), nil
	},
	"generate_secret": func(ctx *evalCtx, args []interface{}) (interface{}, error) {
		if len(args) < 2 {
			return nil, &RenderError{Kind: KindTypeError, Message: "generate_secret: expects (name, length[, charset])"}
		}
		name := toDisplayString(args[0])
		length, ok := toFloat(args[1])
		if !ok {
			return nil, &RenderError{Kind: KindTypeError, Message: "generate_secret: length must be numeric"}
		}
		charset := charsetAlphanumeric
		if len(args) > 2 {
			charset = toDisplayString(args[2])
		}
		if ctx.engine.Secrets == nil {
			return nil, &RenderError{Kind: KindInvalidOperation, Message: "generate_secret: no secret store configured for this render"}
		}
		return ctx.engine.Secrets.getOrCreate(name, int(length), charset)
	},
}

func globalFuncNames() []string {
	out := make([]string, 0, len(globalFuncs))
	for n := range globalFuncs {
		out = append(out, n)
	}
	return out
}
