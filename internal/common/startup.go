package common

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	commonconfig "github.com/G-Research/logingester/internal/common/config"
)

// LoadConfig reads config.yaml from defaultPath, merges each of overrideConfigs over it in order and finally applies
// environment variables named <envPrefix>_<KEY_PATH>, e.g. LOGINGESTER_POSTGRES_CONNECTION_PASSWORD.  Only keys
// present in one of the files can be overridden from the environment.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string, envPrefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "error reading base config from %s", defaultPath)
	}
	log.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config from %s", overrideConfig)
		}
		log.Infof("Read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}
