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

import "fmt"

// Kind categorizes a RenderError so callers can branch on failure class
// without parsing the message text.
type Kind string

const (
	KindUndefinedVariable Kind = "undefined-variable"
	KindUnknownFilter     Kind = "unknown-filter"
	KindUnknownFunction   Kind = "unknown-function"
	KindTypeError         Kind = "type-error"
	KindSyntaxError       Kind = "syntax-error"
	KindInvalidOperation  Kind = "invalid-operation"
)

// RenderError is returned by Engine.Render and carries enough context to
// point a pack author at the offending line.
type RenderError struct {
	TemplateName string
	Line         int
	Kind         Kind
	Message      string
	Suggestion   string
}

func (e *RenderError) Error() string {
	loc := e.TemplateName
	if e.Line > 0 {
		if loc != "" {
			loc = fmt.Sprintf("%s:%d", loc, e.Line)
		} else {
			loc = fmt.Sprintf("line %d", e.Line)
		}
	}
	msg := e.Message
	if loc != "" {
		msg = fmt.Sprintf("%s: %s", loc, msg)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s (did you mean %q?)", msg, e.Suggestion)
	}
	return msg
}

// withTemplate returns a copy of e annotated with the template name it
// occurred in, used by the evaluator when propagating errors up through
// include/import boundaries.
func (e *RenderError) withTemplate(name string) *RenderError {
	if e.TemplateName != "" {
		return e
	}
	cp := *e
	cp.TemplateName = name
	return &cp
}

// asRenderError normalizes an arbitrary error into a *RenderError, wrapping
// non-RenderError causes (e.g. a filter's native Go error) as KindTypeError.
func asRenderError(err error, line int) *RenderError {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RenderError); ok {
		return re
	}
	return &RenderError{Line: line, Kind: KindTypeError, Message: err.Error()}
}
