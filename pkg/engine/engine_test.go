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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBasicOutput(t *testing.T) {
	e := NewEngine()
	out, err := e.Render("t", "hello {{ name }}", map[string]interface{}{"name": "world"})
	require.Nil(t, err)
	assert.Equal(t, "hello world", out)
}

func TestRenderUndefinedVariableSuggestsTypo(t *testing.T) {
	e := NewEngine()
	_, err := e.Render("t", "{{ replicaCuont }}", map[string]interface{}{"replicaCount": float64(3)})
	require.NotNil(t, err)
	assert.Equal(t, KindUndefinedVariable, err.Kind)
	assert.Equal(t, "replicaCount", err.Suggestion)
}

func TestRenderIfElif(t *testing.T) {
	e := NewEngine()
	src := `{% if a == 1 %}one{% elif a == 2 %}two{% else %}other{% endif %}`
	out, err := e.Render("t", src, map[string]interface{}{"a": float64(2)})
	require.Nil(t, err)
	assert.Equal(t, "two", out)
}

func TestRenderForLoop(t *testing.T) {
	e := NewEngine()
	src := `{% for x in items %}[{{ x }}]{% endfor %}`
	out, err := e.Render("t", src, map[string]interface{}{"items": []interface{}{"a", "b", "c"}})
	require.Nil(t, err)
	assert.Equal(t, "[a][b][c]", out)
}

func TestRenderForLoopOverMap(t *testing.T) {
	e := NewEngine()
	src := `{% for k, v in m %}{{ k }}={{ v }};{% endfor %}`
	out, err := e.Render("t", src, map[string]interface{}{
		"m": map[string]interface{}{"b": float64(2), "a": float64(1)},
	})
	require.Nil(t, err)
	assert.Equal(t, "a=1;b=2;", out)
}

func TestRenderFiltersPipeline(t *testing.T) {
	e := NewEngine()
	src := `{{ name | upper | quote }}`
	out, err := e.Render("t", src, map[string]interface{}{"name": "sherpack"})
	require.Nil(t, err)
	assert.Equal(t, `"SHERPACK"`, out)
}

func TestRenderNindentFilter(t *testing.T) {
	e := NewEngine()
	out, err := e.Render("t", `foo:{{ "bar" | nindent(2) }}`, nil)
	require.Nil(t, err)
	assert.Equal(t, "foo:\n  bar", out)
}

func TestRenderRequiredFilterFails(t *testing.T) {
	e := NewEngine()
	_, err := e.Render("t", `{{ missing | required("must set .missing") }}`, map[string]interface{}{})
	require.NotNil(t, err)
	assert.Equal(t, "must set .missing", err.Message)
}

func TestRenderMacro(t *testing.T) {
	e := NewEngine()
	src := `{% macro greet(name) %}hi {{ name }}{% endmacro %}{{ greet("pack") }}`
	out, err := e.Render("t", src, nil)
	require.Nil(t, err)
	assert.Equal(t, "hi pack", out)
}

func TestRenderCallStatement(t *testing.T) {
	e := NewEngine()
	src := `{% macro greet(name) %}hi {{ name }}{% endmacro %}{% call greet("pack") %}`
	out, err := e.Render("t", src, nil)
	require.Nil(t, err)
	assert.Equal(t, "hi pack", out)
}

func TestRenderInclude(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddTemplate("partial", "included {{ x }}"))
	out, err := e.Render("main", `{% include "partial" %}`, map[string]interface{}{"x": "value"})
	require.Nil(t, err)
	assert.Equal(t, "included value", out)
}

func TestRenderImportMacro(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.AddTemplate("lib", `{% macro square(n) %}{{ n * n }}{% endmacro %}`))
	out, err := e.Render("main", `{% import "lib" as lib %}{{ lib.square(4) }}`, nil)
	require.Nil(t, err)
	assert.Equal(t, "16", out)
}

func TestRenderSetAndTernary(t *testing.T) {
	e := NewEngine()
	src := `{% set label = "prod" if env == "production" else "dev" %}{{ label }}`
	out, err := e.Render("t", src, map[string]interface{}{"env": "production"})
	require.Nil(t, err)
	assert.Equal(t, "prod", out)
}

func TestGenerateSecretDeterministicWithinRender(t *testing.T) {
	e := NewEngine()
	src := `{{ generate_secret("pw", 10) }}-{{ generate_secret("pw", 10) }}`
	out, err := e.Render("t", src, nil)
	require.Nil(t, err)
	parts := splitOnce(out, "-")
	assert.Equal(t, parts[0], parts[1])
	assert.Len(t, parts[0], 10)
	assert.True(t, e.Secrets.IsDirty())
}

func TestGenerateSecretSeededValueReused(t *testing.T) {
	e := NewEngine()
	e.Secrets.Seed("pw", "existing-value")
	out, err := e.Render("t", `{{ generate_secret("pw", 10) }}`, nil)
	require.Nil(t, err)
	assert.Equal(t, "existing-value", out)
}

func splitOnce(s, sep string) []string {
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			return []string{s[:i], s[i+len(sep):]}
		}
	}
	return []string{s}
}

func TestRenderMembership(t *testing.T) {
	e := NewEngine()
	src := `{% if "a" in tags %}yes{% else %}no{% endif %}-{% if "z" not in tags %}yes{% else %}no{% endif %}`
	out, err := e.Render("t", src, map[string]interface{}{"tags": []interface{}{"a", "b"}})
	require.Nil(t, err)
	assert.Equal(t, "yes-yes", out)
}

func TestRenderSyntaxErrorReportsLine(t *testing.T) {
	e := NewEngine()
	_, err := e.Render("t", "line one\n{% if %}", nil)
	require.NotNil(t, err)
	assert.Equal(t, KindSyntaxError, err.Kind)
	assert.Equal(t, 2, err.Line)
}
