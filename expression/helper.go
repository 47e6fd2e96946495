package expression

import (
	"fmt"
	"math"
	"strconv"
)

func (e *Engine) registerDefaultFunctions() {
	oneNumber := func(name string, f func(float64) float64) Function {
		return Function{
			Name:    name,
			MinArgs: 1,
			MaxArgs: 1,
			Handler: func(args []any) (any, error) {
				n, ok := toNumber(args[0])
				if !ok {
					return nil, fmt.Errorf("%s: expected number, got %T", name, args[0])
				}
				return f(n), nil
			},
		}
	}
	twoNumbers := func(name string, f func(a, b float64) float64) Function {
		return Function{
			Name:    name,
			MinArgs: 2,
			MaxArgs: 2,
			Handler: func(args []any) (any, error) {
				a, aok := toNumber(args[0])
				b, bok := toNumber(args[1])
				if !aok || !bok {
					return nil, fmt.Errorf("%s: expected numbers, got %T and %T", name, args[0], args[1])
				}
				return f(a, b), nil
			},
		}
	}

	for _, fn := range []Function{
		oneNumber("abs", math.Abs),
		oneNumber("round", math.Round),
		oneNumber("floor", math.Floor),
		oneNumber("ceil", math.Ceil),
		twoNumbers("min", math.Min),
		twoNumbers("max", math.Max),
	} {
		e.functions[fn.Name] = fn
	}
}

func (e *Engine) registerDefaultOperators() {
	ops := []Operator{
		{Name: "+", Precedence: 10, Handler: add},
		{Name: "-", Precedence: 10, Handler: subtract},
		{Name: "*", Precedence: 20, Handler: multiply},
		{Name: "/", Precedence: 20, Handler: divide},
		{Name: "%", Precedence: 20, Handler: modulo},
		{Name: "==", Precedence: 7, Handler: equal},
		{Name: "!=", Precedence: 7, Handler: notEqual},
		{Name: ">", Precedence: 8, Handler: greater},
		{Name: ">=", Precedence: 8, Handler: greaterEqual},
		{Name: "<", Precedence: 8, Handler: less},
		{Name: "<=", Precedence: 8, Handler: lessEqual},
		{Name: "&&", Precedence: 5, Handler: and},
		{Name: "||", Precedence: 4, Handler: or},
	}
	for _, op := range ops {
		e.operators[op.Name] = op
	}
}

// add returns the sum or concatenation of two operands
func add(left, right any) (any, error) {
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return ls + rs, nil
		}
	}
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln + rn, nil
	}
	return nil, fmt.Errorf("invalid operands for +: %T and %T", left, right)
}

func subtract(left, right any) (any, error) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln - rn, nil
	}
	return nil, fmt.Errorf("invalid operands for -: %T and %T", left, right)
}

func multiply(left, right any) (any, error) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln * rn, nil
	}
	return nil, fmt.Errorf("invalid operands for *: %T and %T", left, right)
}

func divide(left, right any) (any, error) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("invalid operands for /: %T and %T", left, right)
	}
	if rn == 0 {
		return nil, fmt.Errorf("division by zero")
	}
	return ln / rn, nil
}

func modulo(left, right any) (any, error) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("invalid operands for %%: %T and %T", left, right)
	}
	if rn == 0 {
		return nil, fmt.Errorf("modulo by zero")
	}
	return math.Mod(ln, rn), nil
}

// equal compares numerically when both sides are numbers, otherwise by
// string form.
func equal(left, right any) (any, error) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln == rn, nil
	}
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right), nil
}

func notEqual(left, right any) (any, error) {
	eq, err := equal(left, right)
	if err != nil {
		return nil, err
	}
	return !eq.(bool), nil
}

func greater(left, right any) (any, error) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln > rn, nil
	}
	return nil, fmt.Errorf("invalid operands for >: %T and %T", left, right)
}

func greaterEqual(left, right any) (any, error) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln >= rn, nil
	}
	return nil, fmt.Errorf("invalid operands for >=: %T and %T", left, right)
}

func less(left, right any) (any, error) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln < rn, nil
	}
	return nil, fmt.Errorf("invalid operands for <: %T and %T", left, right)
}

func lessEqual(left, right any) (any, error) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		return ln <= rn, nil
	}
	return nil, fmt.Errorf("invalid operands for <=: %T and %T", left, right)
}

func and(left, right any) (any, error) {
	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok && rok {
		return lb && rb, nil
	}
	return nil, fmt.Errorf("invalid operands for &&: %T and %T", left, right)
}

func or(left, right any) (any, error) {
	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok && rok {
		return lb || rb, nil
	}
	return nil, fmt.Errorf("invalid operands for ||: %T and %T", left, right)
}

// estimateSize estimates the memory size of a cached value
func estimateSize(v any) int64 {
	switch val := v.(type) {
	case string:
		return int64(len(val))
	case []byte:
		return int64(len(val))
	default:
		return 8
	}
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isOperatorChar(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '%', '=', '!', '<', '>', '|', '&':
		return true
	}
	return false
}

func isUnaryOperator(op string) bool {
	return op == "-" || op == "!"
}

// toNumber attempts to convert a value to a float64
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
