package config

import "github.com/tauraamui/dragoncam/pkg/configdef"

func DefaultResolver() configdef.Resolver {
	return defaultCreateResolver{}
}

func DefaultCreator() configdef.Creator {
	return defaultCreateResolver{}
}

func DefaultCreateResolver() configdef.CreateResolver {
	return defaultCreateResolver{}
}

func DefaultDestroyer() configdef.Destroyer {
	return defaultDestroyer{}
}

type defaultCreateResolver struct{}

func (d defaultCreateResolver) Resolve() (configdef.Values, error) {
	return load()
}

func (d defaultCreateResolver) Create() error {
	return create()
}

type defaultDestroyer struct{}

func (d defaultDestroyer) Destroy() error {
	return destroy()
}
