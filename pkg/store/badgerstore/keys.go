package badgerstore

import (
	"encoding/binary"
	"math"

	"github.com/orneryd/mlgraph/pkg/entity"
)

// Key prefixes for BadgerDB storage organization, one byte each for
// density.
const (
	prefixObject    = byte(0x01) // object:typeName:id -> JSON(attrs)
	prefixEdgeEnds  = byte(0x02) // edgeends:typeName:id -> tail(8)+head(8)
	prefixAdjOut    = byte(0x03) // adjOut:typeName:fromID:edgeID -> toID(8)
	prefixAdjIn     = byte(0x04) // adjIn:typeName:toID:edgeID -> fromID(8)
	prefixEndpoints = byte(0x05) // endpoints:typeName:pairKey -> edgeID(8)
	prefixAttrIndex = byte(0x06) // attrIndex:typeName:attr:sortableF64:id -> empty
)

func beID(id entity.ID) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func decodeID(b []byte) entity.ID {
	return entity.ID(binary.BigEndian.Uint64(b))
}

func objectKey(typeName string, id entity.ID) []byte {
	k := make([]byte, 0, 1+len(typeName)+1+8)
	k = append(k, prefixObject)
	k = append(k, typeName...)
	k = append(k, 0x00)
	k = append(k, beID(id)...)
	return k
}

func objectPrefix(typeName string) []byte {
	k := make([]byte, 0, 1+len(typeName)+1)
	k = append(k, prefixObject)
	k = append(k, typeName...)
	k = append(k, 0x00)
	return k
}

func edgeEndsKey(typeName string, id entity.ID) []byte {
	k := make([]byte, 0, 1+len(typeName)+1+8)
	k = append(k, prefixEdgeEnds)
	k = append(k, typeName...)
	k = append(k, 0x00)
	k = append(k, beID(id)...)
	return k
}

func adjKey(prefix byte, typeName string, nodeID, edgeID entity.ID) []byte {
	k := make([]byte, 0, 1+len(typeName)+1+8+1+8)
	k = append(k, prefix)
	k = append(k, typeName...)
	k = append(k, 0x00)
	k = append(k, beID(nodeID)...)
	k = append(k, 0x00)
	k = append(k, beID(edgeID)...)
	return k
}

func adjPrefix(prefix byte, typeName string, nodeID entity.ID) []byte {
	k := make([]byte, 0, 1+len(typeName)+1+8+1)
	k = append(k, prefix)
	k = append(k, typeName...)
	k = append(k, 0x00)
	k = append(k, beID(nodeID)...)
	k = append(k, 0x00)
	return k
}

func endpointsKey(typeName string, directed bool, tail, head entity.ID) []byte {
	a, b := tail, head
	if !directed && a > b {
		a, b = b, a
	}
	k := make([]byte, 0, 1+len(typeName)+1+16)
	k = append(k, prefixEndpoints)
	k = append(k, typeName...)
	k = append(k, 0x00)
	k = append(k, beID(a)...)
	k = append(k, beID(b)...)
	return k
}

// sortableFloat64 converts f to a big-endian byte representation whose
// unsigned lexicographic order matches float64 ordering, the standard
// sign-flip trick for building orderable keys from IEEE-754 bits.
func sortableFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, bits)
	return b
}

func attrIndexKey(typeName, attr string, val float64, id entity.ID) []byte {
	k := make([]byte, 0, 1+len(typeName)+1+len(attr)+1+8+1+8)
	k = append(k, prefixAttrIndex)
	k = append(k, typeName...)
	k = append(k, 0x00)
	k = append(k, attr...)
	k = append(k, 0x00)
	k = append(k, sortableFloat64(val)...)
	k = append(k, 0x00)
	k = append(k, beID(id)...)
	return k
}

func attrIndexPrefix(typeName, attr string) []byte {
	k := make([]byte, 0, 1+len(typeName)+1+len(attr)+1)
	k = append(k, prefixAttrIndex)
	k = append(k, typeName...)
	k = append(k, 0x00)
	k = append(k, attr...)
	k = append(k, 0x00)
	return k
}

func attrIndexTailID(key []byte) entity.ID {
	return decodeID(key[len(key)-8:])
}
