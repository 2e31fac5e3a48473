package uuid

import (
	guuid "github.com/gofrs/uuid/v5"
)

type UUID = guuid.UUID

func NewV4() UUID {
	return guuid.Must(guuid.NewV4())
}

func NewNil() UUID {
	return guuid.Nil
}

func FromString(s string) (UUID, error) {
	return guuid.FromString(s)
}
