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
	"strconv"
	"strings"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokKeyword
)

type token struct {
	kind tokKind
	text string
	num  float64
}

var exprKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "endif": true,
	"for": true, "endfor": true, "in": true, "set": true,
	"include": true, "import": true, "as": true, "macro": true, "endmacro": true,
	"call": true, "block": true, "endblock": true,
	"and": true, "or": true, "not": true, "is": true,
	"true": true, "false": true, "none": true, "True": true, "False": true, "None": true,
}

// tokenize converts an expression/statement body into a flat token stream.
func tokenize(src string) ([]token, error) {
	var toks []token
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"' || c == '\'':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < n && src[j] != quote {
				if src[j] == '\\' && j+1 < n {
					j++
					switch src[j] {
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					default:
						sb.WriteByte(src[j])
					}
					j++
					continue
				}
				sb.WriteByte(src[j])
				j++
			}
			if j >= n {
				return nil, &RenderError{Kind: KindSyntaxError, Message: "unterminated string literal"}
			}
			toks = append(toks, token{kind: tokString, text: sb.String()})
			i = j + 1
		case isDigit(c):
			j := i
			for j < n && (isDigit(src[j]) || src[j] == '.') {
				j++
			}
			f, err := strconv.ParseFloat(src[i:j], 64)
			if err != nil {
				return nil, &RenderError{Kind: KindSyntaxError, Message: "invalid number literal " + src[i:j]}
			}
			toks = append(toks, token{kind: tokNumber, num: f, text: src[i:j]})
			i = j
		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			if exprKeywords[word] {
				toks = append(toks, token{kind: tokKeyword, text: word})
			} else {
				toks = append(toks, token{kind: tokIdent, text: word})
			}
			i = j
		default:
			op, width := matchOp(src[i:])
			if width == 0 {
				return nil, &RenderError{Kind: KindSyntaxError, Message: "unexpected character " + string(c)}
			}
			toks = append(toks, token{kind: tokOp, text: op})
			i += width
		}
	}
	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

var multiCharOps = []string{"==", "!=", "<=", ">=", "**"}

func matchOp(s string) (string, int) {
	for _, op := range multiCharOps {
		if strings.HasPrefix(s, op) {
			return op, len(op)
		}
	}
	switch s[0] {
	case '.', '[', ']', '(', ')', ',', '|', '~', '+', '-', '*', '/', '%', '<', '>', '=', ':', '{', '}':
		return string(s[0]), 1
	}
	return "", 0
}
