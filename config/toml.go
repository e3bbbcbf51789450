package config

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"text/template"
	"time"
)

const (
	DefaultDirPerm  = 0o700
	DefaultFilePerm = 0o644
)

//go:embed config.toml.tpl
var configTemplateText string

// Fields rendered here must keep the mapstructure names of Config.
var configTemplate = template.Must(template.New("config.toml").Funcs(template.FuncMap{
	"quote":    strconv.Quote,
	"duration": func(d time.Duration) string { return strconv.Quote(d.String()) },
}).Parse(configTemplateText))

// WriteConfigFile renders cfg as TOML at configFilePath, creating parent
// directories as needed.
func WriteConfigFile(configFilePath string, cfg *Config) error {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configFilePath), DefaultDirPerm); err != nil {
		return err
	}
	return os.WriteFile(configFilePath, buf.Bytes(), DefaultFilePerm)
}
