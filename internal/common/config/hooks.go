package config

import (
	"reflect"
	"strings"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		PulsarCompressionTypeHookFunc(),
		PulsarCompressionLevelHookFunc(),
	)),
}

func PulsarCompressionTypeHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// check that src and target types are valid
		if f.Kind() != reflect.String || t != reflect.TypeOf(pulsar.NoCompression) {
			return data, nil
		}
		return ParsePulsarCompressionType(data.(string))
	}
}

func PulsarCompressionLevelHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// check that src and target types are valid
		if f.Kind() != reflect.String || t != reflect.TypeOf(pulsar.Default) {
			return data, nil
		}
		return ParsePulsarCompressionLevel(data.(string))
	}
}

func ParsePulsarCompressionType(compressionType string) (pulsar.CompressionType, error) {
	switch strings.ToLower(compressionType) {
	case "", "none":
		return pulsar.NoCompression, nil
	case "lz4":
		return pulsar.LZ4, nil
	case "zlib":
		return pulsar.ZLib, nil
	case "zstd":
		return pulsar.ZSTD, nil
	default:
		return pulsar.NoCompression, errors.Errorf("unknown pulsar compression type %q", compressionType)
	}
}

func ParsePulsarCompressionLevel(compressionLevel string) (pulsar.CompressionLevel, error) {
	switch strings.ToLower(compressionLevel) {
	case "", "default":
		return pulsar.Default, nil
	case "faster":
		return pulsar.Faster, nil
	case "better":
		return pulsar.Better, nil
	default:
		return pulsar.Default, errors.Errorf("unknown pulsar compression level %q", compressionLevel)
	}
}
