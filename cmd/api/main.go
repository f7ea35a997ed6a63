package main

import (
	"go.uber.org/fx"

	"github.com/nazlim/orderdesk/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
