package permalink

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Builder produces the raw candidate for a record.
type Builder func(rec Record) (string, error)

// JoinFields returns the default builder: field values joined by a single space.
// nil values contribute an empty string.
func JoinFields(fields ...string) Builder {
	return func(rec Record) (string, error) {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = stringify(rec.Get(f))
		}
		return strings.Join(parts, " "), nil
	}
}

// ExprBuilder compiles an expr-lang expression evaluated against the record.
// The environment exposes every field in fields by name, plus _id and _type.
// Undefined names evaluate to nil.
func ExprBuilder(src string, fields []string) (Builder, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty builder expression", ErrConfiguration)
	}

	program, err := expr.Compile(src,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: compile builder %q: %w", ErrConfiguration, src, err)
	}

	names := append([]string(nil), fields...)
	return func(rec Record) (string, error) {
		return runExpr(program, rec, names)
	}, nil
}

func runExpr(program *vm.Program, rec Record, fields []string) (string, error) {
	env := make(map[string]any, len(fields)+2)
	for _, f := range fields {
		env[f] = rec.Get(f)
	}
	env["_id"] = rec.ID()
	env["_type"] = rec.Type()

	out, err := expr.Run(program, env)
	if err != nil {
		return "", fmt.Errorf("evaluate builder: %w", err)
	}
	return stringify(out), nil
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}
