package rpc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// NodeStatus is one status document fetched from a node. It is only valid for
// the cycle that fetched it.
type NodeStatus struct {
	URL         string
	BlockHeight uint64
	Epoch       uint64
	Fields      map[string]any
}

func parseStatus(url string, fields map[string]any) (*NodeStatus, error) {
	height, err := uintField(fields, "block_height")
	if err != nil {
		return nil, err
	}
	epoch, err := uintField(fields, "epoch")
	if err != nil {
		return nil, err
	}
	return &NodeStatus{
		URL:         url,
		BlockHeight: height,
		Epoch:       epoch,
		Fields:      fields,
	}, nil
}

// uintField accepts both "123" and 123.
func uintField(fields map[string]any, key string) (uint64, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return 0, errors.Errorf("missing %q field in status response", key)
	}
	out, err := strconv.ParseUint(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %q field", key)
	}
	return out, nil
}

// String renders the document as sorted key: value lines.
func (s *NodeStatus) String() string {
	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, s.Fields[k])
	}
	return strings.TrimSuffix(b.String(), "\n")
}
