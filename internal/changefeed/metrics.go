package changefeed

import "expvar"

var (
	activeSubscriptions = expvar.NewInt("changefeed_subscriptions")
	droppedEvents       = expvar.NewInt("changefeed_dropped_events")
)
