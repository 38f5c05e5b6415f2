// Package filter provides AIP-160 filter parsing for the transfer log.
//
// A parsed Condition can be rendered as a SQL WHERE fragment for the SQLite
// store or evaluated directly against records for the memory store; both
// forms agree on every supported expression.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// TransferDeclarations returns the field declarations for transfer filtering.
func TransferDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("token_id", filtering.TypeInt),
		filtering.DeclareIdent("from", filtering.TypeString),
		filtering.DeclareIdent("to", filtering.TypeString),
		filtering.DeclareIdent("kind", filtering.TypeString),
		filtering.DeclareIdent("ts", filtering.TypeTimestamp),
	)
}

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "kind = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

type fieldKind int

const (
	fieldInt fieldKind = iota
	fieldAddress
	fieldKindName
	fieldTime
)

type field struct {
	column string
	kind   fieldKind
}

// fields maps filter field names to SQL columns and value handling.
var fields = map[string]field{
	"token_id": {column: "token_id", kind: fieldInt},
	"from":     {column: "from_address", kind: fieldAddress},
	"to":       {column: "to_address", kind: fieldAddress},
	"kind":     {column: "kind", kind: fieldKindName},
	"ts":       {column: "at", kind: fieldTime},
}

// Condition is a parsed transfer filter. The zero value matches everything.
type Condition struct {
	root node
}

// Empty reports whether the condition matches every record.
func (c Condition) Empty() bool {
	return c.root == nil
}

// SQL renders the condition as a WHERE fragment.
func (c Condition) SQL() SQLCondition {
	if c.root == nil {
		return SQLCondition{}
	}
	return c.root.sql()
}

// Match reports whether transfer satisfies the condition.
func (c Condition) Match(transfer storage.Transfer) bool {
	if c.root == nil {
		return true
	}
	return c.root.match(transfer)
}

// Parse parses an AIP-160 filter expression over the transfer log.
// Returns an empty condition for an empty filter string.
func Parse(filterStr string) (Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return Condition{}, nil
	}

	decls, err := TransferDeclarations()
	if err != nil {
		return Condition{}, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return Condition{}, fmt.Errorf("parse filter: %w", err)
	}

	root, err := translateExpr(parsed.CheckedExpr.Expr)
	if err != nil {
		return Condition{}, err
	}
	return Condition{root: root}, nil
}

type node interface {
	sql() SQLCondition
	match(storage.Transfer) bool
}

type andNode struct{ left, right node }

func (n andNode) sql() SQLCondition {
	left, right := n.left.sql(), n.right.sql()
	return SQLCondition{
		Clause: fmt.Sprintf("(%s AND %s)", left.Clause, right.Clause),
		Params: append(append([]any{}, left.Params...), right.Params...),
	}
}

func (n andNode) match(t storage.Transfer) bool { return n.left.match(t) && n.right.match(t) }

type orNode struct{ left, right node }

func (n orNode) sql() SQLCondition {
	left, right := n.left.sql(), n.right.sql()
	return SQLCondition{
		Clause: fmt.Sprintf("(%s OR %s)", left.Clause, right.Clause),
		Params: append(append([]any{}, left.Params...), right.Params...),
	}
}

func (n orNode) match(t storage.Transfer) bool { return n.left.match(t) || n.right.match(t) }

type notNode struct{ inner node }

func (n notNode) sql() SQLCondition {
	inner := n.inner.sql()
	return SQLCondition{Clause: fmt.Sprintf("NOT %s", inner.Clause), Params: inner.Params}
}

func (n notNode) match(t storage.Transfer) bool { return !n.inner.match(t) }

// compareNode holds either an int64 value (token ids, millisecond
// timestamps) or a string value (lowercase hex addresses, kinds).
type compareNode struct {
	field field
	op    string
	num   int64
	str   string
}

func (n compareNode) sql() SQLCondition {
	var param any = n.str
	if n.field.kind == fieldInt || n.field.kind == fieldTime {
		param = n.num
	}
	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", n.field.column, n.op),
		Params: []any{param},
	}
}

func (n compareNode) match(t storage.Transfer) bool {
	switch n.field.kind {
	case fieldInt:
		return compareOrdered(int64(t.TokenID), n.op, n.num)
	case fieldTime:
		return compareOrdered(t.At.UnixMilli(), n.op, n.num)
	case fieldAddress:
		addr := t.From
		if n.field.column == "to_address" {
			addr = t.To
		}
		return compareOrdered(AddressValue(addr), n.op, n.str)
	case fieldKindName:
		return compareOrdered(string(t.Kind), n.op, n.str)
	default:
		return false
	}
}

func compareOrdered[T int64 | string](left T, op string, right T) bool {
	switch op {
	case "=":
		return left == right
	case "!=":
		return left != right
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case ">=":
		return left >= right
	default:
		return false
	}
}

// AddressValue renders addr the way filters and stored columns compare it.
func AddressValue(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// translateExpr translates a checked expression into a condition tree.
func translateExpr(e *expr.Expr) (node, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr)
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(call *expr.Expr_Call) (node, error) {
	switch call.Function {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		left, right, err := translatePair(call.Args, "AND")
		if err != nil {
			return nil, err
		}
		return andNode{left: left, right: right}, nil
	case filtering.FunctionOr:
		left, right, err := translatePair(call.Args, "OR")
		if err != nil {
			return nil, err
		}
		return orNode{left: left, right: right}, nil
	case filtering.FunctionNot:
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translateExpr(call.Args[0])
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	case filtering.FunctionEquals,
		filtering.FunctionNotEquals,
		filtering.FunctionLessThan,
		filtering.FunctionLessEquals,
		filtering.FunctionGreaterThan,
		filtering.FunctionGreaterEquals:
		return translateComparison(call.Args, call.Function)
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translatePair(args []*expr.Expr, name string) (node, node, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("%s requires 2 arguments", name)
	}
	left, err := translateExpr(args[0])
	if err != nil {
		return nil, nil, err
	}
	right, err := translateExpr(args[1])
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func translateComparison(args []*expr.Expr, op string) (node, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}

	name, err := extractFieldName(args[0])
	if err != nil {
		return nil, err
	}
	f, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("unknown field: %s", name)
	}

	cmp := compareNode{field: f, op: op}
	switch f.kind {
	case fieldInt:
		cmp.num, err = extractInt(args[1])
	case fieldTime:
		var ts time.Time
		ts, err = extractTimestamp(args[1])
		cmp.num = ts.UnixMilli()
	case fieldAddress:
		if op != filtering.FunctionEquals && op != filtering.FunctionNotEquals {
			return nil, fmt.Errorf("field %s only supports = and !=", name)
		}
		cmp.str, err = extractAddress(args[1])
	case fieldKindName:
		if op != filtering.FunctionEquals && op != filtering.FunctionNotEquals {
			return nil, fmt.Errorf("field %s only supports = and !=", name)
		}
		cmp.str, err = extractKind(args[1])
	}
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return cmp, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractConst(e *expr.Expr) (*expr.Constant, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	constExpr, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant, got %T", e.ExprKind)
	}
	return constExpr.ConstExpr, nil
}

func extractInt(e *expr.Expr) (int64, error) {
	c, err := extractConst(e)
	if err != nil {
		return 0, err
	}
	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return int64(kind.Uint64Value), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", kind)
	}
}

func extractString(e *expr.Expr) (string, error) {
	c, err := extractConst(e)
	if err != nil {
		return "", err
	}
	value, ok := c.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", c.ConstantKind)
	}
	return value.StringValue, nil
}

func extractAddress(e *expr.Expr) (string, error) {
	value, err := extractString(e)
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(value) {
		return "", fmt.Errorf("invalid address: %s", value)
	}
	return AddressValue(common.HexToAddress(value)), nil
}

func extractKind(e *expr.Expr) (string, error) {
	value, err := extractString(e)
	if err != nil {
		return "", err
	}
	if !storage.TransferKind(value).Valid() {
		return "", fmt.Errorf("invalid kind: %s", value)
	}
	return value, nil
}

// extractTimestamp accepts timestamp("...") calls and bare RFC 3339 strings.
func extractTimestamp(e *expr.Expr) (time.Time, error) {
	if e == nil {
		return time.Time{}, fmt.Errorf("nil expression")
	}
	if call, ok := e.ExprKind.(*expr.Expr_CallExpr); ok {
		if call.CallExpr.Function != filtering.FunctionTimestamp || len(call.CallExpr.Args) != 1 {
			return time.Time{}, fmt.Errorf("unsupported function in value position: %s", call.CallExpr.Function)
		}
		e = call.CallExpr.Args[0]
	}
	value, err := extractString(e)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", value)
	}
	return ts.UTC(), nil
}
