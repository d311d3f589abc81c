package fitting

// Route describes where one emitted output goes: to the pipeline sink, or
// to a specific partition of the next stage.
type Route struct {
	// ToSink is true when the output is delivered to the sink directly.
	ToSink bool

	// Partition is the target partition. Meaningless when ToSink is true.
	Partition PartitionID
}

// RouteOutput resolves the routing of one output emitted toward next.
// Follow keeps the sender's partition; a partition function is applied to
// the output; a sink handle routes to the sink. Pure: no actor state is
// consulted beyond the handle's cached partfun.
func RouteOutput(next *Handle, output any, from PartitionID) Route {
	switch next.Partfun.Kind {
	case PartfunSink:
		return Route{ToSink: true}
	case PartfunFunc:
		return Route{Partition: next.Partfun.Func(output)}
	default:
		return Route{Partition: from}
	}
}
