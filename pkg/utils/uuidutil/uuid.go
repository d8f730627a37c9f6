package uuidutil

import (
	"encoding/base64"
	"github.com/google/uuid"
	"strings"
)

var escaper = strings.NewReplacer("9", "99", "-", "90", "_", "91")

// ShortUUID refer to https://stackoverflow.com/questions/37934162/output-uuid-in-go-as-a-short-string
func ShortUUID() string {
	id := uuid.New()
	return escaper.Replace(base64.RawURLEncoding.EncodeToString(id[:]))
}

// NewID 带前缀的短 id, 用于连接和 mqtt 客户端
func NewID(prefix string) string {
	if len(prefix) == 0 {
		return ShortUUID()
	}
	return prefix + "-" + ShortUUID()
}
