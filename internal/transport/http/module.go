package http

import (
	"go.uber.org/fx"

	dashboardtransport "github.com/nazlim/orderdesk/internal/transport/http/dashboard"
	deliverytransport "github.com/nazlim/orderdesk/internal/transport/http/delivery"
	invoicetransport "github.com/nazlim/orderdesk/internal/transport/http/invoice"
	ordertransport "github.com/nazlim/orderdesk/internal/transport/http/order"
	paymenttransport "github.com/nazlim/orderdesk/internal/transport/http/payment"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	invoicetransport.Module,
	paymenttransport.Module,
	dashboardtransport.Module,
	deliverytransport.Module,
)
