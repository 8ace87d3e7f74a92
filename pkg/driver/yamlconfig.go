/*
 * Copyright 2022 CECTC, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package driver

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-dbpack/dbpack/pkg/log"
)

// TLSConfig is the subset of crypto/tls.Config a caller can express in
// YAML. An empty TLSConfig leaves the connection unencrypted.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" json:"enabled"`
	ServerName         string `yaml:"server_name" json:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// DialConfig is the YAML-loadable counterpart of Config, for callers that
// already have structured configuration - loaded from a file, a secrets
// manager, or assembled programmatically - rather than a DSN or connection
// string.
type DialConfig struct {
	Net              string        `yaml:"net" json:"net"`
	Addr             string        `yaml:"addr" json:"addr"`
	User             string        `yaml:"user" json:"user"`
	Passwd           string        `yaml:"pwd" json:"pwd"`
	DBName           string        `yaml:"db" json:"db"`
	Collation        string        `yaml:"collation" json:"collation"`
	MaxAllowedPacket int           `yaml:"max_allowed_packet" json:"max_allowed_packet"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout" json:"write_timeout"`
	TLS              *TLSConfig    `yaml:"tls" json:"tls"`
	Log              *log.Config   `yaml:"log" json:"log"`
}

// LoadDialConfig reads a YAML file at path and parses it into a DialConfig.
func LoadDialConfig(path string) (*DialConfig, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading dial config %s", path)
	}
	return ParseDialConfig(content)
}

// ParseDialConfig parses YAML content directly, for callers that already
// hold the bytes (e.g. fetched from a secrets manager).
func ParseDialConfig(content []byte) (*DialConfig, error) {
	dc := &DialConfig{}
	if err := yaml.Unmarshal(content, dc); err != nil {
		return nil, errors.Wrap(err, "unmarshal dial config")
	}
	return dc, nil
}

// Config converts a DialConfig into the Config consumed by NewConnectorWithConfig.
func (dc *DialConfig) Config() *Config {
	cfg := NewConfig()
	cfg.Net = dc.Net
	cfg.Addr = dc.Addr
	cfg.User = dc.User
	cfg.Passwd = dc.Passwd
	cfg.DBName = dc.DBName
	if dc.Collation != "" {
		cfg.Collation = dc.Collation
	}
	if dc.MaxAllowedPacket > 0 {
		cfg.MaxAllowedPacket = dc.MaxAllowedPacket
	}
	cfg.Timeout = dc.Timeout
	cfg.ReadTimeout = dc.ReadTimeout
	cfg.WriteTimeout = dc.WriteTimeout
	if dc.TLS != nil && dc.TLS.Enabled {
		if dc.TLS.InsecureSkipVerify {
			cfg.TLSConfig = "skip-verify"
		} else {
			cfg.TLSConfig = "true"
		}
	}
	if dc.Log != nil {
		cfg.Logger = log.New(*dc.Log)
	}
	return cfg
}
