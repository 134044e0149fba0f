package table

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/dremel/pkg/schema"
	stringpool "github.com/ajitpratap0/dremel/pkg/strings"
)

// DefaultFormatRows is the number of rows rendered by String.
const DefaultFormatRows = 10

// Format renders the first n rows, one JSON object per line, keyed by
// field name. Rows that fail to materialize are rendered as an error line.
func (s *Store) Format(n int) string {
	if n > s.rowCount || n < 0 {
		n = s.rowCount
	}
	b := stringpool.GetBuilder(stringpool.SizeFor(n * 64))
	defer stringpool.PutBuilder(b, stringpool.SizeFor(n*64))

	b.WriteString(stringpool.Sprintf("rows: %d\n", s.rowCount))
	for i := 0; i < n; i++ {
		b.WriteString(stringpool.Sprintf("[%d] ", i))
		row, err := s.Row(i)
		if err == nil {
			var data []byte
			data, err = json.Marshal(renderRow(s.schema.Fields(), row))
			if err == nil {
				_, _ = b.Write(data)
			}
		}
		if err != nil {
			b.WriteString("<error: ")
			b.WriteString(err.Error())
			_ = b.WriteByte('>')
		}
		_ = b.WriteByte('\n')
	}
	if n < s.rowCount {
		b.WriteString(stringpool.Sprintf("... %d more\n", s.rowCount-n))
	}
	return b.String()
}

// String renders the first DefaultFormatRows rows.
func (s *Store) String() string {
	return s.Format(DefaultFormatRows)
}

// MarshalRow renders row as JSON keyed by the field names of nodes.
func MarshalRow(nodes []*schema.Node, row Row) ([]byte, error) {
	return json.Marshal(renderRow(nodes, row))
}

// renderRow builds a JSON-friendly tree. Map keys are stringified since
// JSON objects only have string keys.
func renderRow(nodes []*schema.Node, row Row) map[string]any {
	out := make(map[string]any, len(nodes))
	for i, node := range nodes {
		if i < len(row) {
			out[node.Name()] = renderCell(node, row[i])
		}
	}
	return out
}

func renderCell(node *schema.Node, cell Cell) any {
	switch c := cell.(type) {
	case nil:
		return nil
	case Scalar:
		return renderValue(c.Value)
	case Group:
		return renderRow(node.Children(), c.Row)
	case RepeatedGroup:
		out := make([]any, len(c))
		for i, row := range c {
			out[i] = renderRow(node.Children(), row)
		}
		return out
	case Map:
		return renderMap(c)
	case RepeatedMap:
		out := make([]any, len(c))
		for i, m := range c {
			out[i] = renderMap(m)
		}
		return out
	default:
		return fmt.Sprintf("%v", cell)
	}
}

func renderMap(m Map) map[string]any {
	out := make(map[string]any, len(m))
	for _, p := range m {
		out[fmt.Sprint(renderValue(p.Key))] = renderValue(p.Value)
	}
	return out
}

func renderValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = renderValue(x[i])
		}
		return out
	default:
		return v
	}
}
