package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// keySeparator joins the namespace prefix and the shape digest. Namespaces
// must not contain it, otherwise prefix-scoped invalidation could sweep
// entries from a sibling namespace.
const keySeparator = ":"

// DeriveKey deterministically maps a (namespace, shape) pair to a cache key
// of the form "namespace:<sha256 hex digest>".
//
// The shape is any JSON-serializable descriptor of the query or computation
// (a parameter struct, a map, a slice). It is canonicalized before hashing:
// differences in field declaration order or incidental formatting that do not
// change the logical content yield the same key. Derivation is a pure
// function, so keys written before a restart remain addressable afterwards.
func DeriveKey(namespace string, shape any) (string, error) {
	if err := validateNamespace(namespace); err != nil {
		return "", err
	}

	canonical, err := canonicalize(shape)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write(canonical)

	return namespace + keySeparator + hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalize serializes the shape into a byte representation that is stable
// across equivalent inputs. JSON objects round-trip through `any` so that map
// keys and struct fields serialize in sorted order regardless of their
// declaration or insertion order.
func canonicalize(shape any) ([]byte, error) {
	raw, err := json.Marshal(shape)
	if err != nil {
		return nil, errors.Join(ErrInvalidShape, err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.Join(ErrInvalidShape, err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, errors.Join(ErrInvalidShape, err)
	}

	return canonical, nil
}

func validateNamespace(namespace string) error {
	if namespace == "" || strings.Contains(namespace, keySeparator) {
		return ErrInvalidNamespace
	}
	return nil
}
