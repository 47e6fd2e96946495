package expression

import (
	"fmt"
	"time"
)

// TokenType represents an expression token type
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenIdentifier
	TokenOperator
	TokenLParen
	TokenRParen
	TokenComma
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Col   int
}

// Function represents a callable available inside expressions
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int
	Handler func(args []any) (any, error)
}

// Operator represents a binary operator
type Operator struct {
	Name       string
	Precedence int
	Handler    func(left, right any) (any, error)
}

// Config represents engine configuration
type Config struct {
	MaxDepth     int
	Timeout      time.Duration
	StrictMode   bool
	CacheEnabled bool
	CacheSize    int64
	CacheTTL     time.Duration
}

// DefaultConfig returns default engine configuration
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:     10,
		Timeout:      5 * time.Second,
		StrictMode:   true,
		CacheEnabled: true,
		CacheSize:    1024 * 1024,
		CacheTTL:     time.Hour,
	}
}

// SyntaxError reports a malformed expression with its position
type SyntaxError struct {
	Message string
	Col     int
}

// Error returns the error message
func (e *SyntaxError) Error() string {
	if e.Col > 0 {
		return fmt.Sprintf("syntax error at col %d: %s", e.Col, e.Message)
	}
	return fmt.Sprintf("syntax error: %s", e.Message)
}
