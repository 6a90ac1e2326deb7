package hashid

import (
	"fmt"
	"strings"

	hashids "github.com/speps/go-hashids/v2"
)

// Type 一种带前缀的公开ID，例如 pm-x8k2q1
type Type struct {
	prefix string
	h      *hashids.HashID
}

func NewType(prefix, salt string, minLength int) *Type {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = minLength
	h, err := hashids.NewWithData(hd)
	if err != nil {
		panic(err)
	}
	return &Type{prefix: prefix, h: h}
}

func Encode(t *Type, id uint) string {
	s, _ := t.h.Encode([]int{int(id)})
	return t.prefix + s
}

func Decode(t *Type, hashID string) (uint, error) {
	if !strings.HasPrefix(hashID, t.prefix) {
		return 0, fmt.Errorf("invalid hash id: %s", hashID)
	}
	nums, err := t.h.DecodeWithError(strings.TrimPrefix(hashID, t.prefix))
	if err != nil {
		return 0, err
	}
	if len(nums) != 1 || nums[0] < 0 {
		return 0, fmt.Errorf("invalid hash id: %s", hashID)
	}
	return uint(nums[0]), nil
}
