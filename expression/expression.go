// Package expression implements the small expression language used by
// rule-based services: comparison, arithmetic and logical operators
// over named observation values, plus a handful of math functions.
package expression

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Engine parses and evaluates expressions against a variable map.
type Engine struct {
	functions map[string]Function
	operators map[string]Operator
	cache     *Cache
	config    *Config
	mu        sync.RWMutex
}

// New creates an expression engine. A nil config selects defaults.
func New(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Engine{
		functions: make(map[string]Function),
		operators: make(map[string]Operator),
		config:    config,
	}
	if config.CacheEnabled {
		e.cache = NewCache(&CacheConfig{
			MaxSize:         config.CacheSize,
			TTL:             config.CacheTTL,
			CleanupInterval: 5 * time.Minute,
		})
	}

	e.registerDefaultFunctions()
	e.registerDefaultOperators()
	return e
}

// Evaluate evaluates an expression against the given variables.
func (e *Engine) Evaluate(ctx context.Context, expr string, variables map[string]any) (any, error) {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	cacheKey := ""
	if e.cache != nil {
		cacheKey = e.cacheKey(expr, variables)
		if value, ok := e.cache.Get(cacheKey); ok {
			return value, nil
		}
	}

	node, err := e.compile(expr)
	if err != nil {
		return nil, err
	}

	result, err := e.evaluateNode(ctx, node, variables)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		_ = e.cache.Set(cacheKey, result)
	}
	return result, nil
}

// EvaluateBool evaluates an expression that must yield a boolean.
func (e *Engine) EvaluateBool(ctx context.Context, expr string, variables map[string]any) (bool, error) {
	result, err := e.Evaluate(ctx, expr, variables)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q yields %T, not a boolean", expr, result)
	}
	return b, nil
}

// ValidateSyntax checks an expression without evaluating it. Identifier
// names are checked against known when it is non-nil.
func (e *Engine) ValidateSyntax(expr string, known map[string]bool) error {
	tokens, err := e.tokenize(expr)
	if err != nil {
		return err
	}
	if e.config.StrictMode {
		if err := validateTokenSequence(tokens); err != nil {
			return err
		}
	}
	node, err := e.parse(tokens)
	if err != nil {
		return err
	}
	if known != nil {
		for _, name := range collectIdentifiers(node) {
			if !known[name] {
				return fmt.Errorf("unknown observation %q in expression", name)
			}
		}
	}
	return nil
}

// RegisterFunction adds a function to the engine.
func (e *Engine) RegisterFunction(fn Function) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.functions[fn.Name]; exists {
		return fmt.Errorf("function %s already registered", fn.Name)
	}
	if fn.Handler == nil {
		return fmt.Errorf("handler for function %s cannot be nil", fn.Name)
	}
	e.functions[fn.Name] = fn
	return nil
}

// compile tokenizes and parses an expression into an AST.
func (e *Engine) compile(expr string) (Node, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, &SyntaxError{Message: "empty expression"}
	}
	tokens, err := e.tokenize(expr)
	if err != nil {
		return nil, err
	}
	return e.parse(tokens)
}

// cacheKey builds a deterministic key over the expression and the
// sorted variable values.
func (e *Engine) cacheKey(expr string, variables map[string]any) string {
	if len(variables) == 0 {
		return expr
	}
	keys := make([]string, 0, len(variables))
	for k := range variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(expr)
	b.WriteByte(':')
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, variables[k])
	}
	return b.String()
}

// evaluateNode evaluates an AST with panic recovery and context checks.
func (e *Engine) evaluateNode(ctx context.Context, node Node, variables map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during evaluation: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ev := &evaluator{engine: e, ctx: ctx, variables: variables}
	return node.Evaluate(ev)
}

// evaluator carries per-evaluation state down the AST.
type evaluator struct {
	engine    *Engine
	ctx       context.Context
	variables map[string]any
}

// Node represents an AST node
type Node interface {
	Evaluate(ev *evaluator) (any, error)
}

// NumberNode is a numeric literal
type NumberNode struct {
	Value float64
}

func (n *NumberNode) Evaluate(ev *evaluator) (any, error) {
	return n.Value, nil
}

// StringNode is a string literal
type StringNode struct {
	Value string
}

func (n *StringNode) Evaluate(ev *evaluator) (any, error) {
	return n.Value, nil
}

// IdentifierNode is an observation name resolved from the variable map
type IdentifierNode struct {
	Name string
}

func (n *IdentifierNode) Evaluate(ev *evaluator) (any, error) {
	value, ok := ev.variables[n.Name]
	if !ok {
		return nil, fmt.Errorf("undefined observation: %s", n.Name)
	}
	return value, nil
}

// UnaryOpNode negates or inverts its operand
type UnaryOpNode struct {
	Operator string
	Operand  Node
}

func (n *UnaryOpNode) Evaluate(ev *evaluator) (any, error) {
	val, err := n.Operand.Evaluate(ev)
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case "-":
		num, ok := toNumber(val)
		if !ok {
			return nil, fmt.Errorf("invalid operand for unary -: %T", val)
		}
		return -num, nil
	case "!":
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("invalid operand for !: %T", val)
		}
		return !b, nil
	}
	return nil, fmt.Errorf("unknown unary operator %s", n.Operator)
}

// BinaryOpNode applies a binary operator
type BinaryOpNode struct {
	Left     Node
	Operator Operator
	Right    Node
}

func (n *BinaryOpNode) Evaluate(ev *evaluator) (any, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	left, err := n.Left.Evaluate(ev)
	if err != nil {
		return nil, err
	}
	right, err := n.Right.Evaluate(ev)
	if err != nil {
		return nil, err
	}
	result, err := n.Operator.Handler(left, right)
	if err != nil {
		return nil, fmt.Errorf("operator %s: %w", n.Operator.Name, err)
	}
	return result, nil
}

// FunctionCallNode calls a registered function
type FunctionCallNode struct {
	Name string
	Args []Node
}

func (n *FunctionCallNode) Evaluate(ev *evaluator) (any, error) {
	ev.engine.mu.RLock()
	fn, exists := ev.engine.functions[n.Name]
	ev.engine.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("function %s not registered", n.Name)
	}
	if len(n.Args) < fn.MinArgs || (fn.MaxArgs >= 0 && len(n.Args) > fn.MaxArgs) {
		return nil, fmt.Errorf("function %s: wrong argument count %d", n.Name, len(n.Args))
	}

	args := make([]any, len(n.Args))
	for i, argNode := range n.Args {
		val, err := argNode.Evaluate(ev)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, n.Name, err)
		}
		args[i] = val
	}
	return fn.Handler(args)
}

// collectIdentifiers walks the AST gathering identifier names.
func collectIdentifiers(node Node) []string {
	var names []string
	var walk func(Node)
	walk = func(n Node) {
		switch t := n.(type) {
		case *IdentifierNode:
			names = append(names, t.Name)
		case *UnaryOpNode:
			walk(t.Operand)
		case *BinaryOpNode:
			walk(t.Left)
			walk(t.Right)
		case *FunctionCallNode:
			for _, a := range t.Args {
				walk(a)
			}
		}
	}
	walk(node)
	return names
}

// Parser

type parser struct {
	tokens  []*Token
	current int
	depth   int
	engine  *Engine
}

func (e *Engine) parse(tokens []*Token) (Node, error) {
	p := &parser{tokens: tokens, engine: e}
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, &SyntaxError{Message: fmt.Sprintf("unexpected %q after expression", tok.Value), Col: tok.Col}
	}
	return node, nil
}

func (p *parser) peek() *Token {
	if p.current >= len(p.tokens) {
		return &Token{Type: TokenEOF}
	}
	return p.tokens[p.current]
}

func (p *parser) parseExpression() (Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if max := p.engine.config.MaxDepth; max > 0 && p.depth > max {
		return nil, &SyntaxError{Message: "maximum expression depth exceeded"}
	}
	return p.parseBinary(0)
}

func (p *parser) parseBinary(precedence int) (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.Type != TokenOperator {
			break
		}
		op, ok := p.engine.operators[tok.Value]
		if !ok || op.Precedence < precedence {
			break
		}
		p.current++
		right, err := p.parseBinary(op.Precedence + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.peek()
	p.current++

	switch tok.Type {
	case TokenNumber:
		value, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, &SyntaxError{Message: fmt.Sprintf("invalid number %q", tok.Value), Col: tok.Col}
		}
		return &NumberNode{Value: value}, nil

	case TokenString:
		return &StringNode{Value: tok.Value}, nil

	case TokenIdentifier:
		if p.peek().Type == TokenLParen {
			return p.parseCall(tok.Value)
		}
		switch tok.Value {
		case "true":
			return &boolNode{value: true}, nil
		case "false":
			return &boolNode{value: false}, nil
		}
		return &IdentifierNode{Name: tok.Value}, nil

	case TokenOperator:
		if tok.Value == "-" || tok.Value == "!" {
			operand, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			return &UnaryOpNode{Operator: tok.Value, Operand: operand}, nil
		}
		return nil, &SyntaxError{Message: fmt.Sprintf("unexpected operator %q", tok.Value), Col: tok.Col}

	case TokenLParen:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.peek().Type != TokenRParen {
			return nil, &SyntaxError{Message: "expected )", Col: tok.Col}
		}
		p.current++
		return expr, nil

	case TokenEOF:
		return nil, &SyntaxError{Message: "unexpected end of expression", Col: tok.Col}

	default:
		return nil, &SyntaxError{Message: fmt.Sprintf("unexpected token %q", tok.Value), Col: tok.Col}
	}
}

func (p *parser) parseCall(name string) (Node, error) {
	p.current++ // consume (
	var args []Node
	for {
		tok := p.peek()
		if tok.Type == TokenEOF {
			return nil, &SyntaxError{Message: "unterminated argument list", Col: tok.Col}
		}
		if tok.Type == TokenRParen {
			p.current++
			break
		}
		if len(args) > 0 {
			if tok.Type != TokenComma {
				return nil, &SyntaxError{Message: "expected , between arguments", Col: tok.Col}
			}
			p.current++
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &FunctionCallNode{Name: name, Args: args}, nil
}

// boolNode covers the true/false keywords
type boolNode struct {
	value bool
}

func (n *boolNode) Evaluate(ev *evaluator) (any, error) {
	return n.value, nil
}

// validateTokenSequence rejects token pairs that can never form a valid
// expression, giving better errors than the parser alone.
func validateTokenSequence(tokens []*Token) error {
	parens := 0
	var prev *Token
	for _, tok := range tokens {
		switch tok.Type {
		case TokenLParen:
			parens++
		case TokenRParen:
			parens--
			if parens < 0 {
				return &SyntaxError{Message: "unmatched closing parenthesis", Col: tok.Col}
			}
			if prev != nil && prev.Type == TokenOperator {
				return &SyntaxError{Message: "operator before closing parenthesis", Col: tok.Col}
			}
		case TokenNumber, TokenString, TokenIdentifier:
			if prev != nil && (prev.Type == TokenNumber || prev.Type == TokenString || prev.Type == TokenIdentifier) {
				// adjacent values only happen in function argument
				// lists, where a comma separates them
				return &SyntaxError{Message: "two values in a row", Col: tok.Col}
			}
		case TokenOperator:
			if prev != nil && prev.Type == TokenOperator && !isUnaryOperator(tok.Value) {
				return &SyntaxError{Message: "two operators in a row", Col: tok.Col}
			}
		}
		prev = tok
	}
	if parens != 0 {
		return &SyntaxError{Message: "unmatched parentheses"}
	}
	if prev != nil && prev.Type == TokenOperator {
		return &SyntaxError{Message: "expression ends with an operator", Col: prev.Col}
	}
	return nil
}

// Tokenizer

func (e *Engine) tokenize(expr string) ([]*Token, error) {
	var tokens []*Token
	current := 0
	for current < len(expr) {
		char := expr[current]
		col := current + 1

		switch {
		case isWhitespace(char):
			current++

		case isDigit(char):
			start := current
			hasDot := false
			for current < len(expr) && (isDigit(expr[current]) || (expr[current] == '.' && !hasDot)) {
				if expr[current] == '.' {
					hasDot = true
				}
				current++
			}
			tokens = append(tokens, &Token{Type: TokenNumber, Value: expr[start:current], Col: col})

		case isLetter(char) || char == '_':
			start := current
			for current < len(expr) && (isLetter(expr[current]) || isDigit(expr[current]) || expr[current] == '_') {
				current++
			}
			tokens = append(tokens, &Token{Type: TokenIdentifier, Value: expr[start:current], Col: col})

		case char == '"' || char == '\'':
			value, next, err := readString(expr, current)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, &Token{Type: TokenString, Value: value, Col: col})
			current = next

		case isOperatorChar(char):
			value, next, err := readOperator(expr, current)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, &Token{Type: TokenOperator, Value: value, Col: col})
			current = next

		case char == '(':
			tokens = append(tokens, &Token{Type: TokenLParen, Value: "(", Col: col})
			current++

		case char == ')':
			tokens = append(tokens, &Token{Type: TokenRParen, Value: ")", Col: col})
			current++

		case char == ',':
			tokens = append(tokens, &Token{Type: TokenComma, Value: ",", Col: col})
			current++

		default:
			return nil, &SyntaxError{Message: fmt.Sprintf("unexpected character %q", string(char)), Col: col}
		}
	}
	tokens = append(tokens, &Token{Type: TokenEOF, Col: len(expr) + 1})
	return tokens, nil
}

func readString(input string, start int) (string, int, error) {
	quote := input[start]
	var value strings.Builder
	current := start + 1
	for current < len(input) {
		char := input[current]
		if char == quote {
			return value.String(), current + 1, nil
		}
		if char == '\\' && current+1 < len(input) {
			current++
			switch input[current] {
			case 'n':
				value.WriteByte('\n')
			case 't':
				value.WriteByte('\t')
			case '\\', '"', '\'':
				value.WriteByte(input[current])
			default:
				return "", 0, &SyntaxError{Message: fmt.Sprintf("invalid escape \\%c", input[current]), Col: current + 1}
			}
		} else {
			value.WriteByte(char)
		}
		current++
	}
	return "", 0, &SyntaxError{Message: "unterminated string", Col: start + 1}
}

func readOperator(input string, start int) (string, int, error) {
	if start+1 < len(input) {
		compound := input[start : start+2]
		switch compound {
		case "==", "!=", ">=", "<=", "&&", "||":
			return compound, start + 2, nil
		}
	}
	single := string(input[start])
	switch single {
	case "+", "-", "*", "/", "%", "!", "<", ">":
		return single, start + 1, nil
	}
	return "", 0, &SyntaxError{Message: fmt.Sprintf("invalid operator %q", single), Col: start + 1}
}
