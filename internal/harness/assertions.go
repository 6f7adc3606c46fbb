package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/sketchsync/internal/backend"
	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/replica"
	"github.com/roach88/sketchsync/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Line())
		}
	}

	return buf.String()
}

// matchesName reports whether a trace entry is the command or event name.
// Rejections count as their command.
func matchesName(event TraceEvent, name string) bool {
	return event.Name == name
}

// assertTraceContains checks if the trace contains an entry named
// assertion.Name whose payload matches assertion.Args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchesName(event, assertion.Name) && matchArgs(event.Payload, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with args %v", assertion.Name, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if names first appear in the specified order.
// Entries don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for _, event := range trace {
		for _, name := range assertion.Names {
			if matchesName(event, name) && positions[name] == 0 {
				positions[name] = int(event.Seq)
			}
		}
	}

	for _, name := range assertion.Names {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all names present: %v", assertion.Names),
				Actual:   fmt.Sprintf("missing: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Names); i++ {
		prev := assertion.Names[i-1]
		curr := assertion.Names[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("in order: %v", assertion.Names),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the name appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchesName(event, assertion.Name) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Name),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertVariables checks the replica's variable ids, in order.
func assertVariables(s ir.Sketch, assertion Assertion) error {
	ids := make([]string, 0, len(s.Model.Variables))
	for _, v := range s.Model.Variables {
		ids = append(ids, v.ID)
	}
	want := assertion.IDs
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(ids, want) {
		return &AssertionError{
			Type:     AssertVariables,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", ids),
		}
	}
	return nil
}

// assertRegulations checks the replica's regulations, in order.
func assertRegulations(s ir.Sketch, assertion Assertion) error {
	pairs := make([]string, 0, len(s.Model.Regulations))
	for _, r := range s.Model.Regulations {
		pairs = append(pairs, r.Key().String())
	}
	want := assertion.Pairs
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(pairs, want) {
		return &AssertionError{
			Type:     AssertRegulations,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", pairs),
		}
	}
	return nil
}

// assertVariable checks fields of one variable (subset match on its JSON
// form, plus "x" and "y" for its layout position).
func assertVariable(s ir.Sketch, assertion Assertion) error {
	i := s.Model.FindVariable(assertion.ID)
	if i < 0 {
		return &AssertionError{
			Type:     AssertVariable,
			Expected: fmt.Sprintf("variable %s", assertion.ID),
			Actual:   "not in replica",
		}
	}

	var fields map[string]any
	if err := remarshal(s.Model.Variables[i], &fields); err != nil {
		return err
	}
	if pos, ok := s.Model.Layout.Nodes[assertion.ID]; ok {
		fields["x"] = pos.X
		fields["y"] = pos.Y
	}

	for _, key := range sortedKeys(assertion.Expect) {
		if !matchArgs(fields, map[string]any{key: assertion.Expect[key]}) {
			return &AssertionError{
				Type:     AssertVariable,
				Expected: fmt.Sprintf("%s.%s = %v", assertion.ID, key, assertion.Expect[key]),
				Actual:   fmt.Sprintf("%s.%s = %v", assertion.ID, key, fields[key]),
			}
		}
	}
	return nil
}

// assertUndoState checks the tracker's final availability.
func assertUndoState(result *Result, assertion Assertion) error {
	if assertion.CanUndo != nil && *assertion.CanUndo != result.Undo.CanUndo {
		return &AssertionError{
			Type:     AssertUndoState,
			Expected: fmt.Sprintf("can_undo = %t", *assertion.CanUndo),
			Actual:   fmt.Sprintf("can_undo = %t", result.Undo.CanUndo),
		}
	}
	if assertion.CanRedo != nil && *assertion.CanRedo != result.Undo.CanRedo {
		return &AssertionError{
			Type:     AssertUndoState,
			Expected: fmt.Sprintf("can_redo = %t", *assertion.CanRedo),
			Actual:   fmt.Sprintf("can_redo = %t", result.Undo.CanRedo),
		}
	}
	return nil
}

// assertConverged checks that the replica equals the backend's sketch.
func assertConverged(result *Result, b *backend.Backend) error {
	want, err := ir.Fingerprint(b.Sketch())
	if err != nil {
		return err
	}
	got, err := ir.Fingerprint(result.Sketch)
	if err != nil {
		return err
	}
	if got != want {
		return &AssertionError{
			Type:     AssertConverged,
			Expected: "replica fingerprint " + want,
			Actual:   got,
		}
	}
	return nil
}

// assertReplays folds the journaled events into an empty sketch and checks
// that the replica ends at the same place.
func assertReplays(ctx context.Context, st *store.Store, result *Result) error {
	s := ir.NewSketch()
	policy := replica.DefaultPolicy()
	err := st.Replay(ctx, 0, func(rec store.EventRecord) error {
		switch policy.Decide(rec.Event).Strategy {
		case replica.StrategyEscalate, replica.StrategyIgnore:
			return nil
		}
		// Stale and rejected events were no-ops for the replica too
		if next, err := replica.Reduce(s, rec.Event); err == nil {
			s = next
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}

	want, err := ir.Fingerprint(result.Sketch)
	if err != nil {
		return err
	}
	got, err := ir.Fingerprint(s)
	if err != nil {
		return err
	}
	if got != want {
		return &AssertionError{
			Type:     AssertReplays,
			Expected: "journal replay fingerprint " + want,
			Actual:   got,
		}
	}
	return nil
}

// assertJournal checks rows of a journal table. With expect, exactly one
// row must match where and carry the expected values (subset match).
// Without it, the number of matching rows must equal count.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertJournal(ctx context.Context, st *store.Store, assertion Assertion) error {
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}
	query += " ORDER BY seq"

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	var matched []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			// TEXT columns may scan as []byte
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[col] = values[i]
		}
		matched = append(matched, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	whereDesc := formatWhereClause(assertion.Where)
	if len(assertion.Expect) == 0 {
		if len(matched) != assertion.Count {
			return &AssertionError{
				Type:     AssertJournal,
				Expected: fmt.Sprintf("%d rows in %s where %s", assertion.Count, assertion.Table, whereDesc),
				Actual:   fmt.Sprintf("%d rows", len(matched)),
			}
		}
		return nil
	}

	if len(matched) != 1 {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched", len(matched)),
		}
	}

	actualRow := matched[0]
	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertJournal,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertJournal,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
//
// Security: Column names are validated against a whitelist pattern to prevent
// SQL injection via identifier interpolation.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares expected YAML values with SQLite column values,
// which may be returned as different types.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		if actualInt, ok := actual.(int); ok {
			return exp == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// matchArgs checks if actual contains all expected keys with equal values
// (subset match). Expected values are normalized through JSON so YAML
// integers compare equal to decoded float64 payload numbers.
func matchArgs(actual map[string]any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}

	var want map[string]any
	if err := remarshal(expected, &want); err != nil {
		return false
	}

	for key, expectedVal := range want {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two decoded JSON values. Nested objects match as
// subsets; everything else must be equal.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	if exp, ok := expected.(map[string]any); ok {
		act, ok := actual.(map[string]any)
		return ok && matchArgs(act, exp)
	}
	return reflect.DeepEqual(actual, expected)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Backend *backend.Backend
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the journal and the backend; assertions that
// need them fail without it.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertVariables:
			err = assertVariables(result.Sketch, assertion)
		case AssertRegulations:
			err = assertRegulations(result.Sketch, assertion)
		case AssertVariable:
			err = assertVariable(result.Sketch, assertion)
		case AssertUndoState:
			err = assertUndoState(result, assertion)
		case AssertConverged:
			if actx == nil || actx.Backend == nil {
				err = fmt.Errorf("assertion[%d]: converged requires a backend", i)
			} else {
				err = assertConverged(result, actx.Backend)
			}
		case AssertReplays:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: replays requires a journal", i)
			} else {
				err = assertReplays(actx.Ctx, actx.Store, result)
			}
		case AssertJournal:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal requires a journal", i)
			} else {
				err = assertJournal(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
