package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tacusci/logging/v2"
	"github.com/tauraamui/dragoncam/pkg/configdef"
)

type LoadConfigTestSuite struct {
	suite.Suite
	configResolver configdef.Resolver
	fs             afero.Fs
	path           string
	resetFS        func()
	resetUCD       func()
}

func (suite *LoadConfigTestSuite) SetupSuite() {
	logging.CurrentLoggingLevel = logging.SilentLevel
	suite.configResolver = DefaultResolver()
	suite.resetUCD = overloadUserConfigDir(func() (string, error) { return "test", nil })
}

func (suite *LoadConfigTestSuite) TearDownSuite() {
	suite.resetUCD()
	logging.CurrentLoggingLevel = logging.WarnLevel
}

func (suite *LoadConfigTestSuite) SetupTest() {
	// use in memory FS in implementation for tests
	suite.fs = afero.NewMemMapFs()
	suite.resetFS = overloadFS(suite.fs)

	path, err := resolveConfigPath()
	require.NoError(suite.T(), err)
	suite.path = path
	require.NoError(suite.T(), suite.fs.MkdirAll(filepath.Dir(path), os.ModeDir|os.ModePerm))

	suite.overwriteTestConfig(
		`{
			"debug": true,
			"secret": "DJIF3fje943fi4jefgo0",
			"camera": {"title": "Front", "backend": "mock"}
		}`,
	)
}

func (suite *LoadConfigTestSuite) overwriteTestConfig(config string) {
	require.NoError(suite.T(), afero.WriteFile(suite.fs, suite.path, []byte(config), 0666))
}

func (suite *LoadConfigTestSuite) TearDownTest() {
	suite.resetFS()
}

func (suite *LoadConfigTestSuite) TestResolveConfigPathFromUserConfigDir() {
	assert.Equal(suite.T(), "test/tacusci/dragoncam/config.json", suite.path)
}

func (suite *LoadConfigTestSuite) TestResolveConfigPathFromEnv() {
	os.Setenv("DRAGONCAM_CONFIG", "elsewhere/config.json")
	defer os.Unsetenv("DRAGONCAM_CONFIG")

	path, err := resolveConfigPath()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "elsewhere/config.json", path)
}

func (suite *LoadConfigTestSuite) TestLoadConfigAppliesDefaults() {
	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), true, config.Debug)
	assert.Equal(suite.T(), "DJIF3fje943fi4jefgo0", config.Secret)
	assert.Equal(suite.T(), configdef.Camera{
		Title: "Front", Backend: "mock", JPEGQuality: 80,
		CaptureIntervalMS: 10, RetryDelayMS: 10,
	}, config.Camera)
	assert.Equal(suite.T(), 100, config.DetachGracePeriodMS)
	assert.Equal(suite.T(), 10, config.EmptySlotRetryMS)
	assert.Equal(suite.T(), 1000, config.ResendAfterMS)
	assert.Equal(suite.T(), []configdef.Stream{
		{Name: "primary", Address: ":81", Path: "/stream"},
		{Name: "alternate", Address: ":82", Path: "/alt_stream"},
	}, config.Streams)
	assert.Equal(suite.T(), []configdef.Control{
		{Name: "phone", Address: ":91", Path: "/ws", Profile: "phone"},
		{Name: "desktop", Address: ":92", Path: "/alt_ws", Profile: "desktop"},
	}, config.Controls)
}

func (suite *LoadConfigTestSuite) TestLoadConfigKeepsExplicitValues() {
	suite.overwriteTestConfig(
		`{
			"camera": {"title": "Rear", "backend": "dir", "address": "/frames", "capture_interval_ms": 40},
			"detach_grace_period_ms": 250,
			"streams": [{"name": "only", "address": ":8080", "path": "/live", "max_fps": 5}],
			"controls": []
		}`,
	)

	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 40, config.Camera.CaptureIntervalMS)
	assert.Equal(suite.T(), "/frames", config.Camera.Address)
	assert.Equal(suite.T(), 250, config.DetachGracePeriodMS)
	assert.Equal(suite.T(), []configdef.Stream{{Name: "only", Address: ":8080", Path: "/live", MaxFPS: 5}}, config.Streams)
	assert.Empty(suite.T(), config.Controls)
}

func (suite *LoadConfigTestSuite) TestConfigLoadFailsValidationOnDupStreamNames() {
	suite.overwriteTestConfig(
		`{
			"camera": {"title": "Front"},
			"streams": [
				{"name": "primary", "address": ":81", "path": "/stream"},
				{"name": "primary", "address": ":82", "path": "/stream"}
			]
		}`,
	)

	config, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	require.Empty(suite.T(), config)
	assert.EqualError(suite.T(), err, "validation failed: stream names must be unique")
}

func (suite *LoadConfigTestSuite) TestConfigLoadFailsOnInvalidJSON() {
	suite.overwriteTestConfig(`{"debug" true}`)

	_, err := suite.configResolver.Resolve()
	assert.EqualError(suite.T(), err, "parsing configuration error: invalid character 't' after object key")
}

func (suite *LoadConfigTestSuite) TestConfigLoadFailsOnMissingFile() {
	require.NoError(suite.T(), suite.fs.Remove(suite.path))

	_, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	assert.True(suite.T(), errors.Is(err, os.ErrNotExist))
}

func (suite *LoadConfigTestSuite) TestConfigLoadFailsToResolveUserConfigDir() {
	reset := overloadUserConfigDir(func() (string, error) {
		return "", errors.New("error resolving user config dir")
	})
	defer reset()

	_, err := suite.configResolver.Resolve()
	assert.EqualError(suite.T(), err, "unable to resolve config.json location: error resolving user config dir")
}

func TestLoadConfigTestSuite(t *testing.T) {
	suite.Run(t, &LoadConfigTestSuite{})
}
