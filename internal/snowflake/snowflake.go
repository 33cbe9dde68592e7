// Package snowflake handles the 64-bit IDs the chat platform assigns to
// users, channels and messages.
package snowflake

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Epoch is the platform epoch, 2015-01-01T00:00:00Z, in milliseconds.
const Epoch int64 = 1420070400000

const timestampShift = 22

// ID is a snowflake. The gateway sends IDs as JSON strings; numbers are
// accepted too.
type ID int64

func (id ID) Int64() int64 {
	return int64(id)
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Timestamp returns the creation time embedded in the ID.
func (id ID) Timestamp() time.Time {
	return time.UnixMilli((int64(id) >> timestampShift) + Epoch).UTC()
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(id), 10))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if nerr := json.Unmarshal(data, &n); nerr != nil {
			return fmt.Errorf("snowflake: cannot unmarshal %s: %w", string(data), err)
		}
		*id = ID(n)
		return nil
	}
	n, err := Parse(s)
	if err != nil {
		return err
	}
	*id = n
	return nil
}

// Parse parses a decimal snowflake string.
func Parse(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("snowflake: invalid id string %q: %w", s, err)
	}
	return ID(n), nil
}
