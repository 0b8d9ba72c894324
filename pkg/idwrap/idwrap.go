package idwrap

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDWrap is the primary key type used throughout the module. It wraps a ULID
// so keys sort by creation time and pass through database/sql as a 16-byte
// blob.
type IDWrap struct {
	ulid ulid.ULID
}

func New(id ulid.ULID) IDWrap {
	return IDWrap{ulid: id}
}

// NewNow returns a fresh key stamped with the current time.
func NewNow() IDWrap {
	return IDWrap{ulid: ulid.Make()}
}

func NewText(s string) (IDWrap, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return IDWrap{}, err
	}
	return IDWrap{ulid: id}, nil
}

func NewTextMust(s string) IDWrap {
	id, err := NewText(s)
	if err != nil {
		panic(err)
	}
	return id
}

func NewFromBytes(data []byte) (IDWrap, error) {
	var id ulid.ULID
	if err := id.UnmarshalBinary(data); err != nil {
		return IDWrap{}, err
	}
	return IDWrap{ulid: id}, nil
}

func NewFromBytesMust(data []byte) IDWrap {
	id, err := NewFromBytes(data)
	if err != nil {
		panic(err)
	}
	return id
}

func (u IDWrap) String() string {
	return u.ulid.String()
}

func (u IDWrap) Bytes() []byte {
	return u.ulid[:]
}

func (u IDWrap) Compare(o IDWrap) int {
	return u.ulid.Compare(o.ulid)
}

// IsZero reports whether u is the zero key, which no persisted record carries.
func (u IDWrap) IsZero() bool {
	return u.ulid == ulid.ULID{}
}

func (u IDWrap) Time() time.Time {
	return time.UnixMilli(int64(u.ulid.Time()))
}

// SQL driver value
func (u IDWrap) Value() (driver.Value, error) {
	return u.ulid[:], nil
}

func (u *IDWrap) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("idwrap: cannot scan %T into IDWrap", value)
	}
	return u.ulid.UnmarshalBinary(b)
}
