package runtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

func (a MemoryArea) MarshalJSON() ([]byte, error) {
	if s, ok := MemoryAreaToString[a]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown memory area %d", a)
}

func (a *MemoryArea) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToMemoryArea[strings.ToUpper(s)]
	if !ok {
		return fmt.Errorf("unknown memory area %s", s)
	}
	*a = v
	return nil
}

func (t ValueType) MarshalJSON() ([]byte, error) {
	if s, ok := ValueTypeToString[t]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown value type %d", t)
}

func (t *ValueType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToValueType[strings.ToUpper(s)]
	if !ok {
		return fmt.Errorf("unknown value type %s", s)
	}
	*t = v
	return nil
}
