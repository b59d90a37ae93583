package core

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DOFFY_AOP_LOGARGUMENTS
const EnvPrefix = "DOFFY"

// ConfigManager manages application configuration
type ConfigManager interface {
	Load(configPath string) error
	Get(key string) interface{}
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetFloat(key string) float64
	Set(key string, value interface{})
	SetDefault(key string, value interface{})
	Has(key string) bool
	Unmarshal(target interface{}) error
}

// configManager implements ConfigManager on top of viper
type configManager struct {
	v *viper.Viper
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() ConfigManager {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &configManager{v: v}
}

// Load reads configPath, or config.{json,yaml,toml} from . and ./config
// when configPath is empty. A missing default file is not an error.
func (cm *configManager) Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		cm.v.SetConfigFile(configPath)
		if err := cm.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	}

	cm.v.SetConfigName("config")
	cm.v.AddConfigPath(".")
	cm.v.AddConfigPath("config")
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (cm *configManager) Get(key string) interface{}  { return cm.v.Get(key) }
func (cm *configManager) GetString(key string) string { return cm.v.GetString(key) }
func (cm *configManager) GetInt(key string) int       { return cm.v.GetInt(key) }
func (cm *configManager) GetBool(key string) bool     { return cm.v.GetBool(key) }
func (cm *configManager) GetFloat(key string) float64 { return cm.v.GetFloat64(key) }
func (cm *configManager) Has(key string) bool         { return cm.v.IsSet(key) }

func (cm *configManager) Set(key string, value interface{})        { cm.v.Set(key, value) }
func (cm *configManager) SetDefault(key string, value interface{}) { cm.v.SetDefault(key, value) }

// Unmarshal decodes the configuration into target using its json tags
func (cm *configManager) Unmarshal(target interface{}) error {
	return cm.v.Unmarshal(target, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	})
}

// LoadConfigWithDefaults loads configuration with defaults taken from the
// json-tagged fields of a struct
func LoadConfigWithDefaults(configPath string, defaults interface{}) (ConfigManager, error) {
	cm := NewConfigManager()

	if defaults != nil {
		v := reflect.ValueOf(defaults)
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}

		if v.Kind() == reflect.Struct {
			t := v.Type()
			for i := 0; i < v.NumField(); i++ {
				field := t.Field(i)
				jsonTag := strings.Split(field.Tag.Get("json"), ",")[0]
				if jsonTag != "" && jsonTag != "-" {
					cm.SetDefault(jsonTag, v.Field(i).Interface())
				}
			}
		}
	}

	if err := cm.Load(configPath); err != nil {
		return nil, err
	}

	return cm, nil
}
