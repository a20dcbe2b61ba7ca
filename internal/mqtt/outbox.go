package mqtt

import "slices"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable.
// When full it evicts the oldest measurement, or the oldest message if it
// holds no measurements. Not safe for concurrent use; caller must synchronize.
type outbox struct {
	msgs    []bufferedMsg
	limit   int
	dropped int // evictions since the last drain
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{limit: limit}
}

func (o *outbox) push(m bufferedMsg) {
	if len(o.msgs) >= o.limit {
		i := slices.IndexFunc(o.msgs, func(b bufferedMsg) bool { return b.topic == TopicMeasurement })
		if i < 0 {
			i = 0
		}
		o.msgs = slices.Delete(o.msgs, i, i+1)
		o.dropped++
	}
	o.msgs = append(o.msgs, m)
}

// drain empties the outbox, returning messages oldest first and the number
// evicted since the previous drain.
func (o *outbox) drain() ([]bufferedMsg, int) {
	msgs, dropped := o.msgs, o.dropped
	o.msgs, o.dropped = nil, 0
	return msgs, dropped
}

func (o *outbox) len() int {
	return len(o.msgs)
}
