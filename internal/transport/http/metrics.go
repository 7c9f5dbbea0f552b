package httptransport

import "expvar"

var (
	metricJoinRequestsTotal = expvar.NewInt("join_requests_total")
	metricJoinErrorsTotal   = expvar.NewMap("join_errors_total")

	metricWithdrawalRequestsTotal = expvar.NewInt("withdrawal_requests_total")

	metricSSEConnectionsTotal  = expvar.NewInt("sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("sse_connections_active")
)
