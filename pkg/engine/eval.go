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
	"reflect"
	"strconv"
	"strings"

	"github.com/alegeay/Sherpack-sub001/pkg/values"
)

// scope is a lexical frame in the scope chain: template globals at the
// root, a new child frame per {% for %} iteration and per macro call.
type scope struct {
	vars   map[string]interface{}
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: map[string]interface{}{}, parent: parent}
}

func (s *scope) get(name string) (interface{}, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *scope) set(name string, v interface{}) { s.vars[name] = v }

// moduleNS is bound to the alias of an {% import %} statement; attribute
// access on it resolves to a macro call against the imported template.
type moduleNS struct {
	tmpl *Template
}

// evalCtx carries everything needed to execute a parsed Template: the owning
// engine (for include/import lookups and filter/function registries), the
// template being evaluated (for its own macro/block table), and the current
// scope chain.
type evalCtx struct {
	engine *Engine
	tmpl   *Template
	scope  *scope
}

func (c *evalCtx) child(s *scope) *evalCtx {
	cp := *c
	cp.scope = s
	return &cp
}

// renderNodes executes nodes against ctx and returns the concatenated text
// output.
func renderNodes(nodes []Node, ctx *evalCtx) (string, error) {
	var sb strings.Builder
	for _, n := range nodes {
		if err := execNode(n, ctx, &sb); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func execNode(n Node, ctx *evalCtx, out *strings.Builder) error {
	switch node := n.(type) {
	case *TextNode:
		out.WriteString(node.Text)
		return nil
	case *OutputNode:
		v, err := evalExpr(node.Expr, ctx)
		if err != nil {
			return asRenderError(err, node.Line).withTemplate(ctx.tmpl.Name)
		}
		out.WriteString(toDisplayString(v))
		return nil
	case *SetNode:
		v, err := evalExpr(node.Expr, ctx)
		if err != nil {
			return asRenderError(err, 0).withTemplate(ctx.tmpl.Name)
		}
		ctx.scope.set(node.Name, v)
		return nil
	case *IfNode:
		for _, br := range node.Branches {
			if br.Cond == nil {
				return execBody(br.Body, ctx, out)
			}
			v, err := evalExpr(br.Cond, ctx)
			if err != nil {
				return asRenderError(err, 0).withTemplate(ctx.tmpl.Name)
			}
			if values.Truthy(v) {
				return execBody(br.Body, ctx, out)
			}
		}
		return nil
	case *ForNode:
		return execFor(node, ctx, out)
	case *IncludeNode:
		return execInclude(node, ctx, out)
	case *ImportNode:
		return execImport(node, ctx)
	case *MacroNode:
		return nil // already registered during parse; nothing to emit
	case *CallMacroNode:
		m, ok := ctx.tmpl.Macros[node.Name]
		if !ok {
			return (&RenderError{Line: node.Line, Kind: KindUnknownFunction, Message: "unknown macro '" + node.Name + "'", Suggestion: suggest(node.Name, macroNames(ctx.tmpl))}).withTemplate(ctx.tmpl.Name)
		}
		s, err := callMacro(m, node.Args, ctx)
		if err != nil {
			return asRenderError(err, node.Line).withTemplate(ctx.tmpl.Name)
		}
		out.WriteString(s)
		return nil
	case *BlockNode:
		return execBody(node.Body, ctx, out)
	}
	return nil
}

func execBody(body []Node, ctx *evalCtx, out *strings.Builder) error {
	for _, n := range body {
		if err := execNode(n, ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func execFor(node *ForNode, ctx *evalCtx, out *strings.Builder) error {
	iter, err := evalExpr(node.Iterable, ctx)
	if err != nil {
		return asRenderError(err, node.Line).withTemplate(ctx.tmpl.Name)
	}
	iterate := func(keyFn func(i int) interface{}, valFn func(i int) interface{}, n int) error {
		for i := 0; i < n; i++ {
			child := newScope(ctx.scope)
			if node.KeyVar != "" {
				child.set(node.KeyVar, keyFn(i))
				child.set(node.ValVar, valFn(i))
			} else {
				child.set(node.ValVar, valFn(i))
			}
			if err := execBody(node.Body, ctx.child(child), out); err != nil {
				return err
			}
		}
		return nil
	}
	switch it := iter.(type) {
	case []interface{}:
		return iterate(func(i int) interface{} { return i }, func(i int) interface{} { return it[i] }, len(it))
	case map[string]interface{}:
		keys := make([]string, 0, len(it))
		for k := range it {
			keys = append(keys, k)
		}
		sortStrings(keys)
		return iterate(func(i int) interface{} { return keys[i] }, func(i int) interface{} { return it[keys[i]] }, len(keys))
	case nil:
		return nil
	default:
		rv := reflect.ValueOf(it)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return iterate(func(i int) interface{} { return i }, func(i int) interface{} { return rv.Index(i).Interface() }, rv.Len())
		}
		return (&RenderError{Line: node.Line, Kind: KindTypeError, Message: fmt.Sprintf("cannot iterate over %T", it)}).withTemplate(ctx.tmpl.Name)
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func execInclude(node *IncludeNode, ctx *evalCtx, out *strings.Builder) error {
	nameV, err := evalExpr(node.Name, ctx)
	if err != nil {
		return asRenderError(err, node.Line).withTemplate(ctx.tmpl.Name)
	}
	name, ok := nameV.(string)
	if !ok {
		return (&RenderError{Line: node.Line, Kind: KindTypeError, Message: "include target must be a string"}).withTemplate(ctx.tmpl.Name)
	}
	tmpl, err := ctx.engine.lookupTemplate(name)
	if err != nil {
		return asRenderError(err, node.Line).withTemplate(ctx.tmpl.Name)
	}
	s, err := renderNodes(tmpl.Nodes, ctx.child(ctx.scope))
	if err != nil {
		return err
	}
	out.WriteString(s)
	return nil
}

func execImport(node *ImportNode, ctx *evalCtx) error {
	nameV, err := evalExpr(node.Name, ctx)
	if err != nil {
		return asRenderError(err, node.Line).withTemplate(ctx.tmpl.Name)
	}
	name, ok := nameV.(string)
	if !ok {
		return (&RenderError{Line: node.Line, Kind: KindTypeError, Message: "import target must be a string"}).withTemplate(ctx.tmpl.Name)
	}
	tmpl, err := ctx.engine.lookupTemplate(name)
	if err != nil {
		return asRenderError(err, node.Line).withTemplate(ctx.tmpl.Name)
	}
	ctx.scope.set(node.Alias, &moduleNS{tmpl: tmpl})
	return nil
}

func macroNames(t *Template) []string {
	names := make([]string, 0, len(t.Macros))
	for n := range t.Macros {
		names = append(names, n)
	}
	return names
}

func callMacro(m *MacroNode, args []Expr, ctx *evalCtx) (string, error) {
	child := newScope(ctx.scope)
	for i, param := range m.Params {
		var v interface{}
		if i < len(args) {
			var err error
			v, err = evalExpr(args[i], ctx)
			if err != nil {
				return "", err
			}
		}
		child.set(param, v)
	}
	return renderNodes(m.Body, ctx.child(child))
}

// evalExpr evaluates an expression to a dynamically typed Go value: nil,
// bool, float64, string, []interface{}, or map[string]interface{}.
func evalExpr(e Expr, ctx *evalCtx) (interface{}, error) {
	switch ex := e.(type) {
	case *LiteralExpr:
		return ex.Value, nil
	case *IdentExpr:
		if v, ok := ctx.scope.get(ex.Name); ok {
			return v, nil
		}
		if m, ok := ctx.tmpl.Macros[ex.Name]; ok {
			return m, nil
		}
		return nil, &RenderError{Kind: KindUndefinedVariable, Message: "undefined variable '" + ex.Name + "'", Suggestion: suggest(ex.Name, ctx.scope.names())}
	case *AttrExpr:
		target, err := evalExpr(ex.Target, ctx)
		if err != nil {
			return nil, err
		}
		return getAttr(target, ex.Field)
	case *IndexExpr:
		target, err := evalExpr(ex.Target, ctx)
		if err != nil {
			return nil, err
		}
		key, err := evalExpr(ex.Key, ctx)
		if err != nil {
			return nil, err
		}
		return getIndex(target, key)
	case *ListExpr:
		out := make([]interface{}, len(ex.Items))
		for i, it := range ex.Items {
			v, err := evalExpr(it, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *DictExpr:
		out := map[string]interface{}{}
		for i, k := range ex.Keys {
			kv, err := evalExpr(k, ctx)
			if err != nil {
				return nil, err
			}
			vv, err := evalExpr(ex.Values[i], ctx)
			if err != nil {
				return nil, err
			}
			out[toDisplayString(kv)] = vv
		}
		return out, nil
	case *UnaryExpr:
		v, err := evalExpr(ex.Expr, ctx)
		if err != nil {
			return nil, err
		}
		switch ex.Op {
		case "not":
			return !values.Truthy(v), nil
		case "-":
			f, ok := toFloat(v)
			if !ok {
				return nil, &RenderError{Kind: KindTypeError, Message: "cannot negate non-numeric value"}
			}
			return -f, nil
		}
	case *BinaryExpr:
		return evalBinary(ex, ctx)
	case *TernaryExpr:
		cond, err := evalExpr(ex.Cond, ctx)
		if err != nil {
			return nil, err
		}
		if values.Truthy(cond) {
			return evalExpr(ex.Then, ctx)
		}
		if ex.Else == nil {
			return nil, nil
		}
		return evalExpr(ex.Else, ctx)
	case *FilterExpr:
		target, err := evalExpr(ex.Target, ctx)
		if err != nil {
			// required reports an undefined value with its own message.
			re, isRender := err.(*RenderError)
			if !isRender || re.Kind != KindUndefinedVariable || ex.Name != "required" {
				return nil, err
			}
			target = nil
		}
		args := make([]interface{}, len(ex.Args))
		for i, a := range ex.Args {
			args[i], err = evalExpr(a, ctx)
			if err != nil {
				return nil, err
			}
		}
		fn, ok := filters[ex.Name]
		if !ok {
			return nil, &RenderError{Line: ex.Line, Kind: KindUnknownFilter, Message: "unknown filter '" + ex.Name + "'", Suggestion: suggest(ex.Name, filterNames())}
		}
		return fn(target, args)
	case *TestExpr:
		target, err := evalExpr(ex.Target, ctx)
		if err != nil {
			return nil, err
		}
		args := make([]interface{}, len(ex.Args))
		for i, a := range ex.Args {
			args[i], err = evalExpr(a, ctx)
			if err != nil {
				return nil, err
			}
		}
		fn, ok := tests[ex.Name]
		if !ok {
			return nil, &RenderError{Kind: KindUnknownFilter, Message: "unknown test '" + ex.Name + "'"}
		}
		result, err := fn(target, args)
		if err != nil {
			return nil, err
		}
		if ex.Not {
			return !result, nil
		}
		return result, nil
	case *CallExpr:
		return evalCall(ex, ctx)
	}
	return nil, &RenderError{Kind: KindSyntaxError, Message: "unsupported expression"}
}

func (s *scope) names() []string {
	var out []string
	for cur := s; cur != nil; cur = cur.parent {
		for k := range cur.vars {
			out = append(out, k)
		}
	}
	return out
}

func evalCall(ex *CallExpr, ctx *evalCtx) (interface{}, error) {
	args := make([]interface{}, len(ex.Args))
	for i, a := range ex.Args {
		v, err := evalExpr(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	switch target := ex.Target.(type) {
	case *IdentExpr:
		if v, ok := ctx.scope.get(target.Name); ok {
			if m, ok := v.(*MacroNode); ok {
				return callMacro(m, ex.Args, ctx)
			}
		}
		if m, ok := ctx.tmpl.Macros[target.Name]; ok {
			return callMacro(m, ex.Args, ctx)
		}
		if fn, ok := globalFuncs[target.Name]; ok {
			return fn(ctx, args)
		}
		return nil, &RenderError{Kind: KindUnknownFunction, Message: "unknown function '" + target.Name + "'", Suggestion: suggest(target.Name, globalFuncNames())}
	case *AttrExpr:
		obj, err := evalExpr(target.Target, ctx)
		if err != nil {
			return nil, err
		}
		if ns, ok := obj.(*moduleNS); ok {
			m, ok := ns.tmpl.Macros[target.Field]
			if !ok {
				return nil, &RenderError{Kind: KindUnknownFunction, Message: "unknown macro '" + target.Field + "' in imported template"}
			}
			return callMacro(m, ex.Args, ctx)
		}
		return callMethod(obj, target.Field, args)
	}
	return nil, &RenderError{Kind: KindInvalidOperation, Message: "value is not callable"}
}

// callMethod invokes an exported Go method on obj, translating a
// snake_case template-facing name (e.g. "get_bytes") to Go's exported
// CamelCase convention (e.g. "GetBytes"). Used for the Files API and any
// other host object injected into the render context.
func callMethod(obj interface{}, name string, args []interface{}) (interface{}, error) {
	if obj == nil {
		return nil, &RenderError{Kind: KindInvalidOperation, Message: "cannot call method '" + name + "' on undefined value"}
	}
	rv := reflect.ValueOf(obj)
	method := rv.MethodByName(snakeToCamel(name))
	if !method.IsValid() {
		return nil, &RenderError{Kind: KindUnknownFunction, Message: fmt.Sprintf("unknown method %q on %T", name, obj)}
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	out := method.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if err, ok := out[0].Interface().(error); ok {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		var err error
		if e, ok := out[len(out)-1].Interface().(error); ok {
			err = e
		}
		return out[0].Interface(), err
	}
}

func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var sb strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}

func getAttr(target interface{}, field string) (interface{}, error) {
	switch t := target.(type) {
	case map[string]interface{}:
		if v, ok := t[field]; ok {
			return v, nil
		}
		return nil, nil
	case *moduleNS:
		if m, ok := t.tmpl.Macros[field]; ok {
			return m, nil
		}
		return nil, &RenderError{Kind: KindUndefinedVariable, Message: "no such macro '" + field + "' in imported template"}
	case nil:
		return nil, nil
	default:
		rv := reflect.ValueOf(target)
		for rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		if rv.Kind() == reflect.Struct {
			fv := rv.FieldByName(field)
			if fv.IsValid() {
				return fv.Interface(), nil
			}
		}
		return nil, &RenderError{Kind: KindUndefinedVariable, Message: fmt.Sprintf("no attribute %q on %T", field, target)}
	}
}

func getIndex(target, key interface{}) (interface{}, error) {
	switch t := target.(type) {
	case map[string]interface{}:
		return t[toDisplayString(key)], nil
	case []interface{}:
		i, ok := toFloat(key)
		if !ok {
			return nil, &RenderError{Kind: KindTypeError, Message: "list index must be numeric"}
		}
		idx := int(i)
		if idx < 0 || idx >= len(t) {
			return nil, &RenderError{Kind: KindInvalidOperation, Message: "list index out of range"}
		}
		return t[idx], nil
	case string:
		i, ok := toFloat(key)
		if !ok {
			return nil, &RenderError{Kind: KindTypeError, Message: "string index must be numeric"}
		}
		r := []rune(t)
		idx := int(i)
		if idx < 0 || idx >= len(r) {
			return nil, &RenderError{Kind: KindInvalidOperation, Message: "string index out of range"}
		}
		return string(r[idx]), nil
	case nil:
		return nil, nil
	}
	return nil, &RenderError{Kind: KindTypeError, Message: fmt.Sprintf("cannot index into %T", target)}
}

func evalBinary(ex *BinaryExpr, ctx *evalCtx) (interface{}, error) {
	if ex.Op == "and" {
		l, err := evalExpr(ex.Left, ctx)
		if err != nil {
			return nil, err
		}
		if !values.Truthy(l) {
			return false, nil
		}
		r, err := evalExpr(ex.Right, ctx)
		if err != nil {
			return nil, err
		}
		return values.Truthy(r), nil
	}
	if ex.Op == "or" {
		l, err := evalExpr(ex.Left, ctx)
		if err != nil {
			return nil, err
		}
		if values.Truthy(l) {
			return true, nil
		}
		r, err := evalExpr(ex.Right, ctx)
		if err != nil {
			return nil, err
		}
		return values.Truthy(r), nil
	}
	l, err := evalExpr(ex.Left, ctx)
	if err != nil {
		return nil, err
	}
	r, err := evalExpr(ex.Right, ctx)
	if err != nil {
		return nil, err
	}
	switch ex.Op {
	case "==":
		return deepEqual(l, r), nil
	case "!=":
		return !deepEqual(l, r), nil
	case "~":
		return toDisplayString(l) + toDisplayString(r), nil
	case "+":
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
		if la, ok := l.([]interface{}); ok {
			if ra, ok := r.([]interface{}); ok {
				out := make([]interface{}, 0, len(la)+len(ra))
				out = append(out, la...)
				out = append(out, ra...)
				return out, nil
			}
		}
		return numericOp(ex.Op, l, r)
	case "-", "*", "/", "%":
		return numericOp(ex.Op, l, r)
	case "<", ">", "<=", ">=":
		return compareOp(ex.Op, l, r)
	case "in":
		return membership(l, r)
	}
	return nil, &RenderError{Kind: KindInvalidOperation, Message: "unsupported operator '" + ex.Op + "'"}
}

func numericOp(op string, l, r interface{}) (interface{}, error) {
	lf, ok1 := toFloat(l)
	rf, ok2 := toFloat(r)
	if !ok1 || !ok2 {
		return nil, &RenderError{Kind: KindTypeError, Message: fmt.Sprintf("cannot apply '%s' to %T and %T", op, l, r)}
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, &RenderError{Kind: KindInvalidOperation, Message: "division by zero"}
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, &RenderError{Kind: KindInvalidOperation, Message: "modulo by zero"}
		}
		return float64(int64(lf) % int64(rf)), nil
	}
	return nil, &RenderError{Kind: KindInvalidOperation, Message: "unsupported operator '" + op + "'"}
}

func compareOp(op string, l, r interface{}) (interface{}, error) {
	lf, ok1 := toFloat(l)
	rf, ok2 := toFloat(r)
	if ok1 && ok2 {
		switch op {
		case "<":
			return lf < rf, nil
		case ">":
			return lf > rf, nil
		case "<=":
			return lf <= rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, ok1 := l.(string)
	rs, ok2 := r.(string)
	if ok1 && ok2 {
		switch op {
		case "<":
			return ls < rs, nil
		case ">":
			return ls > rs, nil
		case "<=":
			return ls <= rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return nil, &RenderError{Kind: KindTypeError, Message: fmt.Sprintf("cannot compare %T and %T", l, r)}
}

func membership(needle, haystack interface{}) (interface{}, error) {
	switch h := haystack.(type) {
	case []interface{}:
		for _, v := range h {
			if deepEqual(needle, v) {
				return true, nil
			}
		}
		return false, nil
	case map[string]interface{}:
		key, ok := needle.(string)
		if !ok {
			return false, nil
		}
		_, found := h[key]
		return found, nil
	case string:
		needleStr, ok := needle.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(h, needleStr), nil
	}
	return nil, &RenderError{Kind: KindTypeError, Message: fmt.Sprintf("'in' not supported for %T", haystack)}
}

func deepEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b) && reflect.TypeOf(a) == reflect.TypeOf(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// toDisplayString renders a value the way {{ expr }} output does.
func toDisplayString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
