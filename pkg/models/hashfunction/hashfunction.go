package hashfunction

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/go-faster/city"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
)

type HashFunctionType int

/* Pre-defined hash functions */
const (
	HashFunctionIdent  = HashFunctionType(0)
	HashFunctionMurmur = HashFunctionType(1)
	HashFunctionCity   = HashFunctionType(2)
)

/* Value kinds a sharding value can be hashed as */
const (
	ValueTypeAuto    = ""
	ValueTypeInteger = "integer"
	ValueTypeVarchar = "varchar"
	ValueTypeUUID    = "uuid"
)

var (
	errUnknownValueType = func(v any, hf HashFunctionType) error {
		return fmt.Errorf("unknown type of value that the hash will be calculated from: %T for %s hash type", v, ToString(hf))
	}
)

// EncodeUInt64 encodes an integer as varint, padded to 8 bytes below 2^56.
func EncodeUInt64(input uint64) []byte {
	const ENCODING_BYTES_BIG = binary.MaxVarintLen64
	const ENCODING_BYTES = 8
	const BOUND = 1 << 56 /* 72057594037927936 */

	sz := ENCODING_BYTES
	if input >= BOUND {
		sz = ENCODING_BYTES_BIG
	}

	buf := make([]byte, sz)
	binary.PutUvarint(buf, input)
	return buf
}

// normalize converts a sharding value into the bytes fed to the hash.
func normalize(input any, vtype string, hf HashFunctionType) ([]byte, error) {
	switch v := input.(type) {
	case int64:
		return EncodeUInt64(uint64(v)), nil
	case int:
		return EncodeUInt64(uint64(v)), nil
	case uint64:
		return EncodeUInt64(v), nil
	case []byte:
		return normalize(string(v), vtype, hf)
	case string:
		if vtype == ValueTypeUUID {
			u, err := uuid.Parse(strings.ToLower(v))
			if err != nil {
				return nil, err
			}
			return u[:], nil
		}
		return []byte(v), nil
	default:
		return nil, errUnknownValueType(input, hf)
	}
}

func ApplyMurmurHashFunction(input any, vtype string) (uint32, error) {
	buf, err := normalize(input, vtype, HashFunctionMurmur)
	if err != nil {
		return 0, err
	}
	return murmur3.Sum32(buf), nil
}

func ApplyCityHashFunction(input any, vtype string) (uint32, error) {
	buf, err := normalize(input, vtype, HashFunctionCity)
	if err != nil {
		return 0, err
	}
	return city.Hash32(buf), nil
}

// ApplyHashFunction maps a sharding value onto a non-negative integer.
// Identity accepts integers only and returns their absolute value.
func ApplyHashFunction(input any, vtype string, hf HashFunctionType) (uint64, error) {
	switch hf {
	case HashFunctionIdent:
		switch v := input.(type) {
		case int64:
			if v < 0 {
				return uint64(-v), nil
			}
			return uint64(v), nil
		case int:
			if v < 0 {
				return uint64(-v), nil
			}
			return uint64(v), nil
		case uint64:
			return v, nil
		default:
			return 0, errUnknownValueType(input, hf)
		}
	case HashFunctionMurmur:
		v, err := ApplyMurmurHashFunction(input, vtype)
		return uint64(v), err
	case HashFunctionCity:
		v, err := ApplyCityHashFunction(input, vtype)
		return uint64(v), err
	default:
		return 0, fmt.Errorf("unknown hash function type: %d", hf)
	}
}

// HashFunctionByName returns the HashFunctionType for a configured name.
func HashFunctionByName(hfn string) (HashFunctionType, error) {
	switch strings.ToLower(hfn) {
	case "identity", "ident":
		return HashFunctionIdent, nil
	case "murmur", "":
		return HashFunctionMurmur, nil
	case "city":
		return HashFunctionCity, nil
	default:
		return 0, fmt.Errorf("unknown hash function type: %s", hfn)
	}
}

// ToString converts a HashFunctionType to its configuration name.
// Unknown values give an empty string.
func ToString(hf HashFunctionType) string {
	switch hf {
	case HashFunctionIdent:
		return "identity"
	case HashFunctionMurmur:
		return "murmur"
	case HashFunctionCity:
		return "city"
	}
	return ""
}

// ValidateValueType checks a configured value type name.
func ValidateValueType(vtype string) error {
	switch vtype {
	case ValueTypeAuto, ValueTypeInteger, ValueTypeVarchar, ValueTypeUUID:
		return nil
	default:
		return fmt.Errorf("unknown value type '%s'", vtype)
	}
}
