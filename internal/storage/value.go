package storage

// Value is BongoDB's tagged union over {Int64, Bool, Varchar, Null}. It is
// represented as a plain `any` holding one of int64, bool, string, or nil
// (nil means Null). Row and expression code switches on the dynamic type
// rather than introducing a separate tag field — the teacher's Row/Table
// code does the same with its wider ColType set.
type Value = any

// TypeCompatible reports whether v is a legal value for a column of type t.
// Null (nil) is compatible with every type.
func TypeCompatible(v Value, t ValueType) bool {
	if v == nil {
		return true
	}
	switch t {
	case IntType:
		_, ok := v.(int64)
		return ok
	case BoolType:
		_, ok := v.(bool)
		return ok
	case VarcharType:
		_, ok := v.(string)
		return ok
	default:
		return false
	}
}

// CheckValue validates v against column c: the type tag must be compatible
// and, for VARCHAR, the UTF-8 byte length must not exceed c.Size.
func CheckValue(v Value, c ColumnDef) error {
	if !TypeCompatible(v, c.Type) {
		return typeErrf("type error: column %q is %s, got %T", c.Name, c.Type, v)
	}
	if c.Type == VarcharType && v != nil {
		s := v.(string)
		if len(s) > c.Size {
			return typeErrf("type error: value for column %q exceeds VARCHAR(%d) (%d bytes)", c.Name, c.Size, len(s))
		}
	}
	return nil
}

// Row is an ordered sequence of Values, one per column of its table's
// Schema (I5).
type Row []Value

// Clone returns a shallow copy of the row. Values are either immutable
// (int64, bool, string) or nil, so a shallow copy is a full copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// CheckRow validates a full row against a schema: correct arity, and every
// value tag-compatible with its column (I5).
func CheckRow(row Row, schema Schema) error {
	if len(row) != len(schema.Cols) {
		return typeErrf("type error: row has %d values, schema has %d columns", len(row), len(schema.Cols))
	}
	for i, c := range schema.Cols {
		if err := CheckValue(row[i], c); err != nil {
			return err
		}
	}
	return nil
}
