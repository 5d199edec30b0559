package peer

import (
	"github.com/vmihailenco/msgpack/v5"
)

// SyncChannelLabel is the data channel carrying booth state between peers.
const SyncChannelLabel = "booth-sync"

const syncTypeFilter = "filter"

// syncFrame is one msgpack encoded message on the sync channel.
type syncFrame struct {
	Type   string `msgpack:"type"`
	Filter string `msgpack:"filter,omitempty"`
}

func encodeFilter(name string) ([]byte, error) {
	return msgpack.Marshal(syncFrame{Type: syncTypeFilter, Filter: name})
}

// decodeFilter returns the filter carried by data, or ok=false for frames
// of another type.
func decodeFilter(data []byte) (name string, ok bool, err error) {
	var frame syncFrame
	if err := msgpack.Unmarshal(data, &frame); err != nil {
		return "", false, err
	}
	if frame.Type != syncTypeFilter || frame.Filter == "" {
		return "", false, nil
	}
	return frame.Filter, true, nil
}
