// Provider wiring: configuration, logging and construction of the link
// registry and lifecycle handler from one place.
package providermgr

import (
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/blobmux/blobmux/pkg/blobmux"
	"github.com/blobmux/blobmux/pkg/provider"
	"github.com/blobmux/blobmux/pkg/s3store"
)

type Manager struct {
	Provider *provider.Provider
	Logger   logrus.FieldLogger
	Cfg      *viper.Viper
}

// NewManager builds a fully wired provider. userCfg recognizes:
//
//	"config-file" (string)             - explicit config path
//	"logger"      (logrus.FieldLogger) - replaces the default logger
func NewManager(userCfg map[string]interface{}) (*Manager, error) {
	var err error
	mgr := &Manager{}

	if cfgPathRaw, ok := userCfg["config-file"]; ok {
		if cfgPath, ok := cfgPathRaw.(string); ok {
			err = mgr.initConfig(&cfgPath)
		} else {
			return nil, errors.New("option 'config-file' must be of type string")
		}
	} else {
		err = mgr.initConfig(nil)
	}
	if err != nil {
		return nil, err
	}

	if loggerRaw, ok := userCfg["logger"]; ok {
		if logger, ok := loggerRaw.(logrus.FieldLogger); ok {
			mgr.Logger = logger
		} else {
			return nil, errors.New("option 'logger' must satisfy logrus.FieldLogger")
		}
	} else {
		mgr.Logger = logrus.New()
	}

	mgr.initProvider()
	return mgr, nil
}

func (m *Manager) initConfig(cfgPath *string) error {
	// Private viper context so as not to conflict with the importer's
	// usage.
	m.Cfg = viper.New()

	m.Cfg.SetDefault("admin.addr", "localhost:8090")
	m.Cfg.SetDefault("transport", "local")

	// Order of precedence: ENV, blobmux.yaml, "us-west-2"
	m.Cfg.SetDefault("service.blobstore.s3.region", "us-west-2")
	m.Cfg.BindEnv("service.blobstore.s3.region", "AWS_DEFAULT_REGION")
	m.Cfg.SetDefault("service.blobstore.s3.endpoint", "")

	if cfgPath != nil {
		expanded, err := homedir.Expand(*cfgPath)
		if err != nil {
			return errors.Wrap(err, "failed to expand config path")
		}
		m.Cfg.SetConfigFile(expanded)
	} else {
		// default search path for config is ./configs/blobmux.* (* can be
		// json, yaml, etc)
		m.Cfg.AddConfigPath("./configs")
		m.Cfg.SetConfigName("blobmux")
	}

	if err := m.Cfg.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgPath == nil {
			// running on defaults alone is fine
			return nil
		}
		return errors.Wrap(err, "failed to load config")
	}
	return nil
}

func (m *Manager) initProvider() {
	defaults := s3store.StorageConfig{
		Region:   m.Cfg.GetString("service.blobstore.s3.region"),
		Endpoint: m.Cfg.GetString("service.blobstore.s3.endpoint"),
	}
	aliases := m.Cfg.GetStringMapString("aliases")

	m.Provider = provider.New(
		provider.NewRegistry(),
		defaults,
		aliases,
		m.Logger.WithField("module", "provider"))
}

// NewDispatcher binds the provider's registry to a transport.
func (m *Manager) NewDispatcher(transport blobmux.Transport) *provider.Dispatcher {
	return provider.NewDispatcher(
		transport,
		m.Provider.Registry(),
		m.Logger.WithField("module", "dispatcher"))
}
