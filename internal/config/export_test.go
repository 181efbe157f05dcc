package config

import "github.com/spf13/afero"

func overloadFS(overload afero.Fs) func() {
	fsRef := fs
	fs = overload
	return func() { fs = fsRef }
}

func overloadUserConfigDir(overload func() (string, error)) func() {
	userConfigDirRef := userConfigDir
	userConfigDir = overload
	return func() { userConfigDir = userConfigDirRef }
}
