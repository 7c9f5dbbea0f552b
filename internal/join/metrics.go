package join

import "expvar"

var metricTransitions = expvar.NewMap("join_transitions")
