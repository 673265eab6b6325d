package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

type csvRows struct {
	r   *csv.Reader
	row []string
	err error
}

func openCSV(r io.Reader) (*csvRows, error) {
	text, comma, err := prepareText(r)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(text)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return &csvRows{r: cr}, nil
}

func (c *csvRows) Next() bool {
	if c.err != nil {
		return false
	}

	row, err := c.r.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			err = fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		c.err = err
		return false
	}

	c.row = row
	return true
}

func (c *csvRows) Row() []string { return c.row }
func (c *csvRows) Err() error    { return c.err }
func (c *csvRows) Close() error  { return nil }
