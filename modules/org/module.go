package org

import (
	"github.com/iota-uz/orgledger/modules/org/projection"
	"github.com/iota-uz/orgledger/pkg/application"
)

type Module struct{}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "org"
}

func (m *Module) Register(app *application.Application) error {
	return app.Registry().Register(projection.NewProcessor(app.Logger()))
}
