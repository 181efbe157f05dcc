package config

import (
	"github.com/tauraamui/dragoncam/internal/config"
	"github.com/tauraamui/dragoncam/pkg/configdef"
)

type Resolver interface {
	configdef.Resolver
}

type Creator interface {
	configdef.Creator
}

type CreateResolver interface {
	configdef.CreateResolver
}

type Destroyer interface {
	configdef.Destroyer
}

func DefaultResolver() Resolver {
	return config.DefaultResolver()
}

func DefaultCreator() Creator {
	return config.DefaultCreator()
}

func DefaultCreateResolver() CreateResolver {
	return config.DefaultCreateResolver()
}

func DefaultDestroyer() Destroyer {
	return config.DefaultDestroyer()
}
