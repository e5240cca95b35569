// Copyright 2025 The Cortex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cortexkb/cortex/pkg/rag"
)

// CalculatorTool evaluates arithmetic found in the query, and when the
// query carries no usable expression, extracts numbers from retrieved
// documents instead.
type CalculatorTool struct {
	retriever rag.Retriever
}

func NewCalculatorTool(retriever rag.Retriever) *CalculatorTool {
	return &CalculatorTool{retriever: retriever}
}

func (t *CalculatorTool) Name() string { return "calculator" }

func (t *CalculatorTool) Description() string {
	return "Perform mathematical calculations (e.g., 'Calculate 15% of 1000', 'What's the sum of X and Y?')"
}

var (
	calcHighKeywords = []string{"calculate", "computation", "compute", "what is", "what's"}

	mathOperations = []string{
		"sum", "total", "add", "subtract", "multiply",
		"divide", "percentage", "percent", "%",
		"average", "mean", "difference",
	}

	digitPattern      = regexp.MustCompile(`\d`)
	numberPattern     = regexp.MustCompile(`\d+\.?\d*`)
	percentagePattern = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*%\s*(?:of|from)?\s*(\d+\.?\d*)`)
	arithmeticPattern = regexp.MustCompile(`(\d+\.?\d*)\s*([+\-*/])\s*(\d+\.?\d*)`)
	expressionPattern = regexp.MustCompile(`[\d\s+\-*/().]+`)
)

func (t *CalculatorTool) CanHandle(query string, _ *ExecutionContext) float64 {
	lower := strings.ToLower(query)
	hasDigits := digitPattern.MatchString(query)

	if containsAny(lower, calcHighKeywords) && hasDigits {
		return 0.95
	}

	if hasDigits {
		for _, op := range mathOperations {
			if strings.Contains(lower, op) {
				return 0.85
			}
		}
		if strings.ContainsAny(query, "+-*/^%") {
			return 0.9
		}
	}

	if len(numberPattern.FindAllString(query, -1)) >= 2 {
		return 0.7
	}

	return 0.2
}

func (t *CalculatorTool) Execute(ctx context.Context, query string, ec *ExecutionContext) ToolResult {
	start := time.Now()

	if result, expression, ok := evaluateQuery(query); ok {
		answer := formatCalculation(expression, result)
		slog.Info("Calculation", "expression", expression, "result", result)

		return ToolResult{
			Success: true,
			Data: map[string]any{
				"answer":     answer,
				"expression": expression,
				"result":     result,
				"query_type": "calculation",
			},
			Metadata: map[string]any{
				"tool":        t.Name(),
				"query":       query,
				"calculation": fmt.Sprintf("%s = %v", expression, result),
			},
			ExecutionTime: time.Since(start),
		}
	}

	// No evaluable expression in the query; look for numbers in documents.
	docs := contextDocuments(ec)
	if len(docs) == 0 {
		retriever := t.retriever
		if retriever == nil && ec != nil {
			retriever = ec.Retriever
		}
		if retriever != nil {
			retrieved, err := retriever.Retrieve(ctx, query, 3)
			if err != nil {
				slog.Warn("Calculator retrieval failed", "error", err)
			} else {
				docs = retrieved
			}
		}
	}

	if len(docs) > 0 {
		if result, expression, citations, ok := calculateFromDocuments(query, docs); ok {
			answer := formatCalculation(expression, result)

			return ToolResult{
				Success: true,
				Data: map[string]any{
					"answer":     answer,
					"expression": expression,
					"result":     result,
					"query_type": "calculation",
				},
				Metadata: map[string]any{
					"tool":        t.Name(),
					"query":       query,
					"calculation": fmt.Sprintf("%s = %v", expression, result),
					"source":      "documents",
				},
				Citations:     citations,
				ExecutionTime: time.Since(start),
			}
		}
	}

	return failureResult(t.Name(), "could not extract numbers or evaluate expression", start)
}

// evaluateQuery extracts and evaluates a mathematical expression embedded
// in the query text.
func evaluateQuery(query string) (float64, string, bool) {
	// Percentage form: "15% of 1000".
	if m := percentagePattern.FindStringSubmatch(query); m != nil {
		percent, err1 := strconv.ParseFloat(m[1], 64)
		value, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			return percent / 100 * value, fmt.Sprintf("%v%% of %v", percent, value), true
		}
	}

	// Basic binary arithmetic: "12 + 30".
	if m := arithmeticPattern.FindStringSubmatch(query); m != nil {
		a, err1 := strconv.ParseFloat(m[1], 64)
		b, err2 := strconv.ParseFloat(m[3], 64)
		if err1 == nil && err2 == nil {
			var result float64
			switch m[2] {
			case "+":
				result = a + b
			case "-":
				result = a - b
			case "*":
				result = a * b
			case "/":
				if b == 0 {
					return 0, "", false
				}
				result = a / b
			}
			return result, fmt.Sprintf("%v %s %v", a, m[2], b), true
		}
	}

	// Longer expressions with parentheses.
	if m := expressionPattern.FindString(query); m != "" {
		expr := strings.TrimSpace(m)
		if digitPattern.MatchString(expr) {
			if result, err := evalExpression(expr); err == nil {
				return result, expr, true
			}
		}
	}

	return 0, "", false
}

// calculateFromDocuments pulls numbers out of retrieved chunks and applies
// the operation the query asks for. Up to five numbers per chunk.
func calculateFromDocuments(query string, docs []rag.Document) (float64, string, []Citation, bool) {
	var numbers []float64
	var citations []Citation

	for i, doc := range docs {
		matches := numberPattern.FindAllString(doc.Content, 5)
		if len(matches) == 0 {
			continue
		}

		for _, m := range matches {
			if n, err := strconv.ParseFloat(m, 64); err == nil {
				numbers = append(numbers, n)
			}
		}

		citations = append(citations, Citation{
			Document:     doc.Name(),
			PageNumber:   doc.Page(),
			Content:      truncateString(doc.Content, 200),
			RankPosition: i + 1,
			Metadata:     doc.Metadata,
		})
	}

	if len(numbers) < 2 {
		return 0, "", nil, false
	}

	lower := strings.ToLower(query)
	rendered := make([]string, len(numbers))
	for i, n := range numbers {
		rendered[i] = strconv.FormatFloat(n, 'f', -1, 64)
	}

	switch {
	case containsAny(lower, []string{"sum", "total", "add", "plus"}):
		var sum float64
		for _, n := range numbers {
			sum += n
		}
		return sum, fmt.Sprintf("sum(%s)", strings.Join(rendered, ", ")), citations, true

	case strings.Contains(lower, "average") || strings.Contains(lower, "mean"):
		var sum float64
		for _, n := range numbers {
			sum += n
		}
		return sum / float64(len(numbers)), fmt.Sprintf("average(%s)", strings.Join(rendered, ", ")), citations, true

	case strings.Contains(lower, "difference") || strings.Contains(lower, "subtract"):
		if len(citations) > 2 {
			citations = citations[:2]
		}
		return numbers[0] - numbers[1], fmt.Sprintf("%s - %s", rendered[0], rendered[1]), citations, true
	}

	return 0, "", nil, false
}

func formatCalculation(expression string, result float64) string {
	var rendered string
	if result == float64(int64(result)) {
		rendered = strconv.FormatInt(int64(result), 10)
	} else {
		rendered = strconv.FormatFloat(result, 'f', 2, 64)
	}
	return fmt.Sprintf("The result of %s is %s.", expression, rendered)
}

// evalExpression is a recursive-descent evaluator for + - * / and
// parentheses over decimal literals.
func evalExpression(expr string) (float64, error) {
	p := &exprParser{input: expr}
	result, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected character at position %d", p.pos)
	}
	return result, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}

	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}

	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}

	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	return strconv.ParseFloat(p.input[start:p.pos], 64)
}

var _ Tool = (*CalculatorTool)(nil)
