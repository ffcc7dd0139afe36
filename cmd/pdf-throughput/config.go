// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-throughput/internal/convert"
	"github.com/pdiddy/pdf-throughput/pkg/types"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("bench.engine", convert.DefaultEngine)
	v.SetDefault("bench.loops", 10)
	v.SetDefault("bench.parallel", 1)
	v.SetDefault("bench.trace_memory", false)
	v.SetDefault("bench.timeout", "0s")
	v.SetDefault("bench.sample_interval", "50ms")
	v.SetDefault("bench.format", "text")

	for _, name := range []string{convert.EngineMarker, convert.EngineMarkitdown, convert.EngineMinerU} {
		v.SetDefault("engines."+name+".image", name+":latest")
		v.SetDefault("engines."+name+".port", "8000")
		v.SetDefault("engines."+name+".convert_path", "/convert")
		v.SetDefault("engines."+name+".health_path", "/health")
		v.SetDefault("engines."+name+".start_timeout", "10m")
	}

	v.SetDefault("engines.tika.url", "http://localhost:9998")
	v.SetDefault("engines.tika.timeout", "600s")
	v.SetDefault("engines.tika.skip_ocr", true)
	v.SetDefault("engines.tika.image", "apache/tika:latest")
	v.SetDefault("engines.tika.start_timeout", "60s")

	v.SetDefault("engines.unstructured.url", "http://localhost:8000")
	v.SetDefault("engines.unstructured.timeout", "600s")
	v.SetDefault("engines.unstructured.strategy", "hi_res")
	v.SetDefault("engines.unstructured.model", "yolox")
	v.SetDefault("engines.unstructured.infer_tables", true)

	v.SetDefault("engines.ocr.languages", []string{"eng"})
	v.SetDefault("engines.ocr.dpi", 300)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// loadConfig assembles the configuration from v. Durations accept Go
// syntax ("90s", "1m30s") or a bare number of seconds.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	var errs []string
	dur := func(key string) time.Duration {
		d, err := durationValue(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}
	httpCfg := func(prefix string) types.HTTPConfig {
		return types.HTTPConfig{
			URL:        v.GetString(prefix + ".url"),
			Timeout:    dur(prefix + ".timeout"),
			MaxRetries: v.GetInt(prefix + ".max_retries"),
		}
	}

	containerCfg := func(prefix string) types.ContainerEngineConfig {
		return types.ContainerEngineConfig{
			Image:        v.GetString(prefix + ".image"),
			Port:         v.GetString(prefix + ".port"),
			ConvertPath:  v.GetString(prefix + ".convert_path"),
			HealthPath:   v.GetString(prefix + ".health_path"),
			StartTimeout: dur(prefix + ".start_timeout"),
			GPUs:         v.GetString(prefix + ".gpus"),
		}
	}

	cfg.Bench = types.RunConfig{
		Loops:          v.GetInt("bench.loops"),
		Parallel:       v.GetInt("bench.parallel"),
		TraceMemory:    v.GetBool("bench.trace_memory"),
		Timeout:        dur("bench.timeout"),
		SampleInterval: dur("bench.sample_interval"),
	}

	cfg.Engines = types.EnginesConfig{
		Marker:     containerCfg("engines.marker"),
		Markitdown: containerCfg("engines.markitdown"),
		MinerU:     containerCfg("engines.mineru"),
		Tika: types.TikaConfig{
			HTTPConfig:   httpCfg("engines.tika"),
			SkipOCR:      v.GetBool("engines.tika.skip_ocr"),
			Autostart:    v.GetBool("engines.tika.autostart"),
			Image:        v.GetString("engines.tika.image"),
			StartTimeout: dur("engines.tika.start_timeout"),
		},
		Unstructured: types.UnstructuredConfig{
			HTTPConfig:  httpCfg("engines.unstructured"),
			Strategy:    v.GetString("engines.unstructured.strategy"),
			Model:       v.GetString("engines.unstructured.model"),
			InferTables: v.GetBool("engines.unstructured.infer_tables"),
			APIKey:      v.GetString("engines.unstructured.api_key"),
		},
		OCR: types.OCRConfig{
			Languages: v.GetStringSlice("engines.ocr.languages"),
			DPI:       v.GetFloat64("engines.ocr.dpi"),
		},
	}

	cfg.Log = types.LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func durationValue(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
