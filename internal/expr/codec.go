package expr

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/semlayer/internal/ir"
)

// DecodePredicate converts a generic node tree into a Predicate.
// Numbers in node must be json.Number (decode with UseNumber).
func DecodePredicate(node any) (Predicate, error) {
	return decodePredicate(node, "$")
}

func decodePredicate(node any, path string) (Predicate, error) {
	m, ok := node.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: predicate must be an object, got %s", path, typeName(node))
	}

	if _, ok := m["column"]; ok {
		return decodeColumnPredicate(m, path)
	}

	key, val, err := singleKey(m, path, "all", "any", "not")
	if err != nil {
		return nil, err
	}

	switch key {
	case "all", "any":
		items, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("%s.%s: expected a list, got %s", path, key, typeName(val))
		}
		preds := make([]Predicate, 0, len(items))
		for i, item := range items {
			p, err := decodePredicate(item, fmt.Sprintf("%s.%s[%d]", path, key, i))
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		if key == "all" {
			return And{Predicates: preds}, nil
		}
		return Or{Predicates: preds}, nil
	default: // "not"
		inner, err := decodePredicate(val, path+".not")
		if err != nil {
			return nil, err
		}
		return Not{Predicate: inner}, nil
	}
}

func decodeColumnPredicate(m map[string]any, path string) (Predicate, error) {
	column, ok := m["column"].(string)
	if !ok || column == "" {
		return nil, fmt.Errorf("%s.column: expected a non-empty string", path)
	}

	_, hasOp := m["op"]
	_, hasIn := m["in"]
	_, hasNull := m["is_null"]

	switch {
	case hasOp && !hasIn && !hasNull:
		if err := allowKeys(m, path, "column", "op", "value"); err != nil {
			return nil, err
		}
		opText, ok := m["op"].(string)
		if !ok {
			return nil, fmt.Errorf("%s.op: expected a string", path)
		}
		op, err := ParseOp(opText)
		if err != nil {
			return nil, fmt.Errorf("%s.op: %w", path, err)
		}
		raw, ok := m["value"]
		if !ok {
			return nil, fmt.Errorf("%s: comparison on %q has no value", path, column)
		}
		value, err := DecodeLiteral(raw)
		if err != nil {
			return nil, fmt.Errorf("%s.value: %w", path, err)
		}
		return Compare{Column: column, Op: op, Value: value}, nil

	case hasIn && !hasOp && !hasNull:
		if err := allowKeys(m, path, "column", "in"); err != nil {
			return nil, err
		}
		items, ok := m["in"].([]any)
		if !ok {
			return nil, fmt.Errorf("%s.in: expected a list, got %s", path, typeName(m["in"]))
		}
		values := make([]ir.IRValue, 0, len(items))
		for i, item := range items {
			v, err := DecodeLiteral(item)
			if err != nil {
				return nil, fmt.Errorf("%s.in[%d]: %w", path, i, err)
			}
			values = append(values, v)
		}
		return In{Column: column, Values: values}, nil

	case hasNull && !hasOp && !hasIn:
		if err := allowKeys(m, path, "column", "is_null"); err != nil {
			return nil, err
		}
		isNull, ok := m["is_null"].(bool)
		if !ok {
			return nil, fmt.Errorf("%s.is_null: expected a boolean", path)
		}
		return IsNull{Column: column, Negated: !isNull}, nil

	default:
		return nil, fmt.Errorf("%s: column predicate on %q needs exactly one of op, in, is_null", path, column)
	}
}

// DecodeLiteral converts a scalar node into an IRValue.
// Strings stay strings; whether they denote a date is decided by the column.
func DecodeLiteral(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case string:
		return ir.IRString(val), nil
	case bool:
		return ir.IRBool(val), nil
	case json.Number:
		return ir.NumberFromText(val.String())
	case int:
		return ir.IRInt(val), nil
	case int64:
		return ir.IRInt(val), nil
	case nil:
		return nil, fmt.Errorf("null literal is not allowed, use is_null")
	case float64, float32:
		return nil, fmt.Errorf("float literal %v: numbers must keep their source text", val)
	default:
		return nil, fmt.Errorf("literal must be a scalar, got %s", typeName(v))
	}
}

// DecodeExpr converts a generic node tree into a metric Expr.
func DecodeExpr(node any) (Expr, error) {
	return decodeExpr(node, "$")
}

func decodeExpr(node any, path string) (Expr, error) {
	m, ok := node.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expression must be an object, got %s", path, typeName(node))
	}

	key, val, err := singleKey(m, path,
		"column", "metric", "number",
		"sum", "avg", "count", "count_all",
		"add", "sub", "mul", "div", "ratio")
	if err != nil {
		return nil, err
	}
	at := path + "." + key

	switch key {
	case "column", "metric":
		name, ok := val.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%s: expected a non-empty string", at)
		}
		if key == "column" {
			return ColumnRef{Column: name}, nil
		}
		return MetricRef{ID: name}, nil

	case "number":
		d, err := decodeDecimal(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
		return Number{Value: d}, nil

	case "sum", "avg", "count":
		arg, err := decodeExpr(val, at)
		if err != nil {
			return nil, err
		}
		return Aggregate{Func: AggFunc(strings.ToUpper(key)), Arg: arg}, nil

	case "count_all":
		if b, ok := val.(bool); !ok || !b {
			return nil, fmt.Errorf("%s: expected true", at)
		}
		return Aggregate{Func: AggCount}, nil

	case "add", "sub", "mul", "div":
		items, ok := val.([]any)
		if !ok || len(items) < 2 {
			return nil, fmt.Errorf("%s: expected a list of at least two operands", at)
		}
		operands := make([]Expr, 0, len(items))
		for i, item := range items {
			e, err := decodeExpr(item, fmt.Sprintf("%s[%d]", at, i))
			if err != nil {
				return nil, err
			}
			operands = append(operands, e)
		}
		return Arith{Op: arithOps[key], Operands: operands}, nil

	default: // "ratio"
		r, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected an object with numerator and denominator", at)
		}
		if err := allowKeys(r, at, "numerator", "denominator"); err != nil {
			return nil, err
		}
		num, err := decodeExpr(r["numerator"], at+".numerator")
		if err != nil {
			return nil, err
		}
		den, err := decodeExpr(r["denominator"], at+".denominator")
		if err != nil {
			return nil, err
		}
		return Ratio{Numerator: num, Denominator: den}, nil
	}
}

var (
	arithOps  = map[string]ArithOp{"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv}
	arithKeys = map[ArithOp]string{OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div"}
)

func decodeDecimal(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		return decimal.NewFromString(val.String())
	case string:
		return decimal.NewFromString(val)
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("expected a number, got %s", typeName(v))
	}
}

// EncodePredicate converts p back into node form. Used for fingerprints and
// for the JSON wire format of intents.
func EncodePredicate(p Predicate) ir.IRValue {
	switch n := p.(type) {
	case Compare:
		return ir.IRObject{"column": ir.IRString(n.Column), "op": ir.IRString(string(n.Op)), "value": n.Value}
	case In:
		return ir.IRObject{"column": ir.IRString(n.Column), "in": ir.IRArray(n.Values)}
	case IsNull:
		return ir.IRObject{"column": ir.IRString(n.Column), "is_null": ir.IRBool(!n.Negated)}
	case And:
		return ir.IRObject{"all": encodePredicates(n.Predicates)}
	case Or:
		return ir.IRObject{"any": encodePredicates(n.Predicates)}
	case Not:
		return ir.IRObject{"not": EncodePredicate(n.Predicate)}
	default:
		return ir.IRNull{}
	}
}

func encodePredicates(preds []Predicate) ir.IRArray {
	out := make(ir.IRArray, len(preds))
	for i, p := range preds {
		out[i] = EncodePredicate(p)
	}
	return out
}

// EncodeExpr converts e back into node form.
func EncodeExpr(e Expr) ir.IRValue {
	switch n := e.(type) {
	case ColumnRef:
		return ir.IRObject{"column": ir.IRString(n.Column)}
	case MetricRef:
		return ir.IRObject{"metric": ir.IRString(n.ID)}
	case Number:
		return ir.IRObject{"number": ir.IRDecimal{Decimal: n.Value}}
	case Aggregate:
		if n.Arg == nil {
			return ir.IRObject{"count_all": ir.IRBool(true)}
		}
		return ir.IRObject{strings.ToLower(string(n.Func)): EncodeExpr(n.Arg)}
	case Arith:
		operands := make(ir.IRArray, len(n.Operands))
		for i, operand := range n.Operands {
			operands[i] = EncodeExpr(operand)
		}
		key, ok := arithKeys[n.Op]
		if !ok {
			return ir.IRNull{}
		}
		return ir.IRObject{key: operands}
	case Ratio:
		return ir.IRObject{"ratio": ir.IRObject{
			"numerator":   EncodeExpr(n.Numerator),
			"denominator": EncodeExpr(n.Denominator),
		}}
	default:
		return ir.IRNull{}
	}
}

// singleKey requires m to hold exactly one key, drawn from allowed.
func singleKey(m map[string]any, path string, allowed ...string) (string, any, error) {
	if len(m) != 1 {
		return "", nil, fmt.Errorf("%s: expected exactly one of %s, got keys %s", path, strings.Join(allowed, ", "), keysOf(m))
	}
	for k, v := range m {
		if !slices.Contains(allowed, k) {
			return "", nil, fmt.Errorf("%s: unknown node %q", path, k)
		}
		return k, v, nil
	}
	return "", nil, nil
}

func allowKeys(m map[string]any, path string, allowed ...string) error {
	for k := range m {
		if !slices.Contains(allowed, k) {
			return fmt.Errorf("%s: unexpected key %q", path, k)
		}
	}
	return nil
}

func keysOf(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return "[" + strings.Join(keys, ", ") + "]"
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
