package domain

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Product описывает строку каталога. Идентичностью служит индекс строки в загруженном каталоге.
type Product struct {
	Row     int
	columns []string
	values  []Value
}

// NewProduct создаёт запись. columns разделяется между всеми строками каталога и не должен изменяться.
func NewProduct(row int, columns []string, values []Value) Product {
	return Product{
		Row:     row,
		columns: columns,
		values:  values,
	}
}

// Get возвращает значение колонки по имени.
func (p Product) Get(column string) (Value, bool) {
	for i, c := range p.columns {
		if c == column {
			return p.values[i], true
		}
	}

	return NullValue(), false
}

func (p Product) Columns() []string {
	return p.columns
}

// MarshalJSON сериализует запись как плоский объект "колонка → значение" в порядке колонок каталога.
func (p Product) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, c := range p.columns {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := p.values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
