package moex

// issTable is one block of an ISS JSON reply: column names plus positional rows.
type issTable struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// column returns the value of name in row, or nil.
func (t issTable) column(row []any, name string) any {
	for i, c := range t.Columns {
		if c == name && i < len(row) {
			return row[i]
		}
	}
	return nil
}

type issResponse struct {
	Marketdata issTable `json:"marketdata"`
	Securities issTable `json:"securities"`
}
