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
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/go-dbpack/dbpack/pkg/constant"
	"github.com/go-dbpack/dbpack/pkg/errs"
	"github.com/go-dbpack/dbpack/pkg/log"
	"github.com/go-dbpack/dbpack/pkg/misc"
)

// Config holds everything a BackendConnection needs to dial and
// authenticate. Only the DSN knobs this driver actually acts on are kept -
// mysql_native_password is the only auth plugin implemented (see auth.go),
// so there's no allowOldPasswords/allowCleartextPasswords/serverPubKey
// surface here the way a general-purpose go-sql-driver-style DSN has.
type Config struct {
	User             string            // Username
	Passwd           string            // Password (requires User)
	Net              string            // Network type
	Addr             string            // Network address (requires Net)
	DBName           string            // Database name
	Params           map[string]string // Unrecognized params, passed through verbatim
	Collation        string            // Connection collation
	Loc              *time.Location    // Location for time.Time values
	MaxAllowedPacket int               // Max packet size allowed
	TLSConfig        string            // TLS configuration name
	tls              *tls.Config       // TLS configuration
	Timeout          time.Duration     // Dial timeout
	ReadTimeout      time.Duration     // I/O read timeout
	WriteTimeout     time.Duration     // I/O write timeout
	Logger           *zap.Logger       // Debug/warn sink; defaults to a no-op logger, never a package global

	ClientFoundRows           bool // Return number of matching rows instead of rows changed
	DisableClientDeprecateEOF bool // Disable client deprecate EOF
}

// NewConfig creates a Config with the same defaults ParseDSN falls back to
// when a parameter is never given.
func NewConfig() *Config {
	return &Config{
		Collation:                 constant.DefaultCollation,
		Loc:                       time.UTC,
		MaxAllowedPacket:          constant.DefaultMaxAllowedPacket,
		DisableClientDeprecateEOF: true,
		Logger:                    log.Nop(),
	}
}

// Clone returns a deep copy safe to mutate independently of cfg.
func (cfg *Config) Clone() *Config {
	cp := *cfg
	if cp.tls != nil {
		cp.tls = cfg.tls.Clone()
	}
	if len(cp.Params) > 0 {
		cp.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			cp.Params[k] = v
		}
	}
	return &cp
}

func (cfg *Config) normalize() error {
	if cfg.Net == "" {
		cfg.Net = "tcp"
	}

	if cfg.Addr == "" {
		switch cfg.Net {
		case "tcp":
			cfg.Addr = "127.0.0.1:3306"
		case "unix":
			cfg.Addr = "/tmp/mysql.sock"
		default:
			return errors.New("default addr for network '" + cfg.Net + "' unknown")
		}
	} else if cfg.Net == "tcp" {
		cfg.Addr = ensureHavePort(cfg.Addr)
	}

	switch cfg.TLSConfig {
	case "false", "":
		// leave cfg.tls nil
	case "true":
		cfg.tls = &tls.Config{}
	case "skip-verify", "preferred":
		cfg.tls = &tls.Config{InsecureSkipVerify: true}
	default:
		cfg.tls = misc.GetTLSConfigClone(cfg.TLSConfig)
		if cfg.tls == nil {
			return errors.New("invalid value / unknown config name: " + cfg.TLSConfig)
		}
	}

	if cfg.tls != nil && cfg.tls.ServerName == "" && !cfg.tls.InsecureSkipVerify {
		if host, _, err := net.SplitHostPort(cfg.Addr); err == nil {
			cfg.tls.ServerName = host
		}
	}

	return nil
}

// ParseDSN parses a connection string of the form
// [user[:password]@][net[(addr)]]/dbname[?param1=value1&...&paramN=valueN]
// into a Config, applying NewConfig's defaults for anything unset.
func ParseDSN(dsn string) (*Config, error) {
	cfg := NewConfig()

	slash := strings.LastIndexByte(dsn, '/')
	if slash < 0 {
		if dsn == "" {
			return cfg, nil
		}
		return nil, errs.ErrInvalidDSNNoSlash
	}

	if slash > 0 {
		if err := parseDSNNetAddr(cfg, dsn[:slash]); err != nil {
			return nil, err
		}
	}

	rest := dsn[slash+1:]
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		if err := parseDSNParams(cfg, rest[q+1:]); err != nil {
			return nil, err
		}
		rest = rest[:q]
	}
	cfg.DBName = rest

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDSNNetAddr parses the [user[:password]@][net[(addr)]] prefix that
// precedes the dbname slash.
func parseDSNNetAddr(cfg *Config, s string) error {
	netAddr := s
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		userInfo := s[:at]
		netAddr = s[at+1:]
		if colon := strings.IndexByte(userInfo, ':'); colon >= 0 {
			cfg.User = userInfo[:colon]
			cfg.Passwd = userInfo[colon+1:]
		} else {
			cfg.User = userInfo
		}
	}

	paren := strings.IndexByte(netAddr, '(')
	if paren < 0 {
		cfg.Net = netAddr
		return nil
	}

	if !strings.HasSuffix(netAddr, ")") {
		if strings.ContainsRune(netAddr[paren+1:], ')') {
			return errs.ErrInvalidDSNUnescaped
		}
		return errs.ErrInvalidDSNAddr
	}

	cfg.Net = netAddr[:paren]
	cfg.Addr = netAddr[paren+1 : len(netAddr)-1]
	return nil
}

// parseDSNParams applies the "?key=value&..." query portion of a DSN onto
// cfg. Values must already be url.QueryEscape'd. Keys this driver doesn't
// recognize land in cfg.Params verbatim rather than erroring, so a caller
// can pass server-side session variables through without this file needing
// to know their names.
func parseDSNParams(cfg *Config, params string) (err error) {
	for _, v := range strings.Split(params, "&") {
		param := strings.SplitN(v, "=", 2)
		if len(param) != 2 {
			continue
		}

		switch value := param[1]; param[0] {
		case "clientFoundRows":
			var isBool bool
			cfg.ClientFoundRows, isBool = misc.ReadBool(value)
			if !isBool {
				return errors.New("invalid bool value: " + value)
			}

		case "collation":
			if _, ok := constant.Collations[value]; !ok {
				return errors.New("unknown collation: " + value)
			}
			cfg.Collation = value

		case "disableClientDeprecateEOF":
			var isBool bool
			cfg.DisableClientDeprecateEOF, isBool = misc.ReadBool(value)
			if !isBool {
				return errors.New("invalid bool value: " + value)
			}

		case "loc":
			if value, err = url.QueryUnescape(value); err != nil {
				return err
			}
			cfg.Loc, err = time.LoadLocation(value)
			if err != nil {
				return err
			}

		case "maxAllowedPacket":
			cfg.MaxAllowedPacket, err = strconv.Atoi(value)
			if err != nil {
				return err
			}

		case "readTimeout":
			cfg.ReadTimeout, err = time.ParseDuration(value)
			if err != nil {
				return err
			}

		case "timeout":
			cfg.Timeout, err = time.ParseDuration(value)
			if err != nil {
				return err
			}

		case "tls":
			if boolValue, isBool := misc.ReadBool(value); isBool {
				if boolValue {
					cfg.TLSConfig = "true"
				} else {
					cfg.TLSConfig = "false"
				}
			} else if vl := strings.ToLower(value); vl == "skip-verify" || vl == "preferred" {
				cfg.TLSConfig = vl
			} else {
				name, err := url.QueryUnescape(value)
				if err != nil {
					return fmt.Errorf("invalid value for TLS config name: %v", err)
				}
				cfg.TLSConfig = name
			}

		case "writeTimeout":
			cfg.WriteTimeout, err = time.ParseDuration(value)
			if err != nil {
				return err
			}

		default:
			if cfg.Params == nil {
				cfg.Params = make(map[string]string)
			}
			if cfg.Params[param[0]], err = url.QueryUnescape(value); err != nil {
				return err
			}
		}
	}

	return nil
}

func ensureHavePort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, "3306")
	}
	return addr
}
