package app

import (
	"go.uber.org/fx"

	"github.com/nazlim/orderdesk/internal/cache"
	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/database"
	"github.com/nazlim/orderdesk/internal/logger"
	"github.com/nazlim/orderdesk/internal/messaging"
	"github.com/nazlim/orderdesk/internal/observability"
	repositorydashboard "github.com/nazlim/orderdesk/internal/repository/dashboard"
	repositorydelivery "github.com/nazlim/orderdesk/internal/repository/delivery"
	repositoryinvoice "github.com/nazlim/orderdesk/internal/repository/invoice"
	repositoryorder "github.com/nazlim/orderdesk/internal/repository/order"
	repositorypayment "github.com/nazlim/orderdesk/internal/repository/payment"
	httpserver "github.com/nazlim/orderdesk/internal/server/http"
	servicedashboard "github.com/nazlim/orderdesk/internal/service/dashboard"
	servicedelivery "github.com/nazlim/orderdesk/internal/service/delivery"
	serviceinvoice "github.com/nazlim/orderdesk/internal/service/invoice"
	serviceorder "github.com/nazlim/orderdesk/internal/service/order"
	servicepayment "github.com/nazlim/orderdesk/internal/service/payment"
	transporthttp "github.com/nazlim/orderdesk/internal/transport/http"
	"github.com/nazlim/orderdesk/internal/worker"
	workerorder "github.com/nazlim/orderdesk/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	repositoryinvoice.Module,
	repositorypayment.Module,
	repositorydashboard.Module,
	repositorydelivery.Module,
	serviceorder.Module,
	serviceinvoice.Module,
	servicepayment.Module,
	servicedashboard.Module,
	servicedelivery.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
