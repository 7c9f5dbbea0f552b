package events

import "expvar"

var publishFailures = expvar.NewInt("events_publish_failures")
