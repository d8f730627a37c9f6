package runtime

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseAddress parses a symbolic address into a MemoryReference with Count 1.
//
//	DB<n>.DB{B|W|D}<offset>    DB1.DBW0
//	DB<n>.DBX<offset>.<bit>    DB7.DBX22.0
//	{E|I|A|Q|O|M}{B|W|D}<off>  MW100, IB3
//	{E|I|A|Q|O|M}<off>.<bit>   M2000.1, Q0.7
//	T<n>, {Z|C}<n>             T5, C12
//
// Matching is case-insensitive and ignores whitespace.
func ParseAddress(address string) (MemoryReference, error) {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, address)
	p := &addressParser{raw: address, s: normalized}
	ref, err := p.parse()
	if err != nil {
		return MemoryReference{}, err
	}
	ref.Count = 1
	return ref, nil
}

type addressParser struct {
	raw string
	s   string
}

func (p *addressParser) fail(token, reason string) error {
	return &InvalidAddressError{Address: p.raw, Token: token, Reason: reason}
}

func (p *addressParser) parse() (MemoryReference, error) {
	if p.s == "" {
		return MemoryReference{}, p.fail("", "empty address")
	}
	if strings.HasPrefix(p.s, "DB") {
		return p.parseDataBlock()
	}

	prefix := p.s[:1]
	rest := p.s[1:]
	area, ok := StringToMemoryArea[prefix]
	if !ok {
		return MemoryReference{}, p.fail(prefix, "unknown area prefix")
	}
	switch area {
	case T, C:
		n, err := p.number(rest, "timer or counter number")
		if err != nil {
			return MemoryReference{}, err
		}
		vt := Timer
		if area == C {
			vt = Counter
		}
		return MemoryReference{Area: area, ByteOffset: n, ValueType: vt}, nil
	default:
		return p.parseSized(area, rest)
	}
}

func (p *addressParser) parseDataBlock() (MemoryReference, error) {
	parts := strings.Split(p.s, ".")
	if len(parts) < 2 {
		return MemoryReference{}, p.fail(p.s, "missing '.' between data block and offset")
	}
	db, err := p.number(parts[0][2:], "data block number")
	if err != nil {
		return MemoryReference{}, err
	}
	if db < 1 || db > 0xffff {
		return MemoryReference{}, p.fail(parts[0], "data block number out of range 1..65535")
	}
	if !strings.HasPrefix(parts[1], "DB") || len(parts[1]) < 3 {
		return MemoryReference{}, p.fail(parts[1], "expected DBB, DBW, DBD or DBX")
	}
	ref, err := p.parseSized(DB, strings.Join(parts[1:], ".")[2:])
	if err != nil {
		return MemoryReference{}, err
	}
	ref.DBNumber = db
	return ref, nil
}

// parseSized handles "{B|W|D}<off>", "X<off>.<bit>" and "<off>.<bit>".
func (p *addressParser) parseSized(area MemoryArea, rest string) (MemoryReference, error) {
	ref := MemoryReference{Area: area}
	if rest == "" {
		return ref, p.fail(p.s, "missing offset")
	}
	size := rest[:1]
	switch size {
	case "B", "W", "D":
		ref.ValueType = map[string]ValueType{"B": Byte, "W": Word, "D": DWord}[size]
		off, err := p.number(rest[1:], "offset")
		if err != nil {
			return ref, err
		}
		ref.ByteOffset = off
		return ref, nil
	case "X":
		rest = rest[1:]
	default:
		if area == DB {
			return ref, p.fail(size, "unknown size specifier")
		}
	}

	parts := strings.Split(rest, ".")
	if len(parts) < 2 {
		return ref, p.fail(rest, "missing bit index")
	}
	if len(parts) > 2 {
		return ref, p.fail(rest, "too many '.' separators")
	}
	off, err := p.number(parts[0], "offset")
	if err != nil {
		return ref, err
	}
	bit, err := p.number(parts[1], "bit index")
	if err != nil {
		return ref, err
	}
	if bit > 7 {
		return ref, p.fail(parts[1], "bit index greater than 7")
	}
	ref.ValueType = Bit
	ref.ByteOffset = off
	ref.BitOffset = bit
	return ref, nil
}

func (p *addressParser) number(token, what string) (int, error) {
	if token == "" {
		return 0, p.fail(p.s, "missing "+what)
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, p.fail(token, "invalid "+what)
		}
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, p.fail(token, "invalid "+what)
	}
	return n, nil
}

// FormatAddress renders the canonical address of a reference.
// Types the grammar cannot express are rendered by their element width.
func FormatAddress(r MemoryReference) string {
	switch r.Area {
	case T:
		return fmt.Sprintf("T%d", r.ByteOffset)
	case C:
		return fmt.Sprintf("C%d", r.ByteOffset)
	}
	prefix := MemoryAreaToString[r.Area]
	if r.Area == DB {
		prefix = fmt.Sprintf("DB%d.DB", r.DBNumber)
	}
	if r.ValueType == Bit {
		if r.Area == DB {
			return fmt.Sprintf("%sX%d.%d", prefix, r.ByteOffset, r.BitOffset)
		}
		return fmt.Sprintf("%s%d.%d", prefix, r.ByteOffset, r.BitOffset)
	}
	size := "B"
	switch r.ElementLength() {
	case 2:
		size = "W"
	case 4:
		size = "D"
	}
	return fmt.Sprintf("%s%s%d", prefix, size, r.ByteOffset)
}
