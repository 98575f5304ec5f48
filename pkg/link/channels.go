package link

// DefaultQueueDepth is the default depth of each queue in frames.
const DefaultQueueDepth = 32

// Channels holds the queues shared by the transport and the protocol
// dispatcher. It's created once at startup.
type Channels struct {
	// Outbound holds frames to be transmitted.
	Outbound *Queue
	// Unsolicited holds received frames which are not replies.
	Unsolicited *Queue
	// Return holds replies to the outstanding request.
	Return *Queue
}

// NewChannels creates Channels with queues of depth frames.
func NewChannels(depth int) *Channels {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Channels{
		Outbound:    NewQueue("outbound", depth),
		Unsolicited: NewQueue("unsolicited", depth),
		Return:      NewQueue("return", depth),
	}
}
