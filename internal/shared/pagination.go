package shared

// CursorPage bounds cursor-paginated listings. Rows are ordered by id DESC
// and a cursor returns rows with id < cursor.
type CursorPage struct {
	Cursor int64
	Limit  int
}

// Clamp normalises the limit into [1, max] with the given default.
func (p CursorPage) Clamp(def, max int) CursorPage {
	out := p
	if out.Limit <= 0 {
		out.Limit = def
	}
	if out.Limit > max {
		out.Limit = max
	}
	return out
}
