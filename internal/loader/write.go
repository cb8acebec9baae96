package loader

import (
	"fmt"
	"sort"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

var encodeOptions = ojg.Options{Sort: true}

// Marshal renders a document as compact JSON with sorted keys.
func Marshal(v any) ([]byte, error) {
	return oj.Marshal(v, &encodeOptions)
}

// Encode marshals v and compresses the result.
func Encode(v any, c Compression) ([]byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	out, err := compress(c, data)
	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", c, err)
	}
	return out, nil
}

// Split moves the largest first-level subtrees of doc into separate fragment
// documents until the primary encodes to at most maxBytes, or nothing is left
// to move. The returned documents are in load order: fragments first, the
// primary last, with markers pointing at the fragments. doc is not modified.
// maxBytes <= 0 disables splitting.
func Split(doc map[string]any, maxBytes int) ([]any, error) {
	primary := make(map[string]any, len(doc))
	for k, v := range doc {
		primary[k] = v
	}
	if maxBytes <= 0 {
		return []any{primary}, nil
	}

	size, err := encodedSize(primary)
	if err != nil {
		return nil, err
	}
	if size <= maxBytes {
		return []any{primary}, nil
	}

	type candidate struct {
		key  string
		size int
	}
	var candidates []candidate
	for k, v := range primary {
		if _, ok := v.(map[string]any); !ok {
			continue
		}
		n, err := encodedSize(v)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{key: k, size: n})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].size != candidates[j].size {
			return candidates[i].size > candidates[j].size
		}
		return candidates[i].key < candidates[j].key
	})

	var fragments []any
	for _, c := range candidates {
		if size <= maxBytes {
			break
		}
		ref := Ref(len(fragments))
		fragments = append(fragments, primary[c.key])
		primary[c.key] = ref
		// the marker and its quotes replace the subtree
		size -= c.size - len(ref) - 2
	}
	return append(fragments, primary), nil
}

func encodedSize(v any) (int, error) {
	data, err := Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal document: %w", err)
	}
	return len(data), nil
}
