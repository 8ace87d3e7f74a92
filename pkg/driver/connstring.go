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
	"strconv"
	"strings"

	"github.com/go-dbpack/dbpack/pkg/errs"
)

// ParseConnectionString parses a semicolon-separated key=value connection
// string - host, user, pwd, db, port - into a Config. This is a narrower,
// distinct surface from ParseDSN's user:pass@tcp(host:port)/db?params
// style; callers that already have a DSN string use ParseDSN instead.
func ParseConnectionString(s string) (*Config, error) {
	cfg := NewConfig()
	cfg.Net = "tcp"
	host := "127.0.0.1"
	port := "3306"

	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errs.NewProtocolError("invalid connection string segment: %q", pair)
		}
		key, value := strings.TrimSpace(kv[0]), kv[1]

		switch key {
		case "host":
			host = value
		case "user":
			cfg.User = value
		case "pwd":
			cfg.Passwd = value
		case "db":
			cfg.DBName = value
		case "port":
			if _, err := strconv.Atoi(value); err != nil {
				return nil, errs.NewProtocolError("invalid port %q: %v", value, err)
			}
			port = value
		default:
			return nil, errs.NewProtocolError("unknown connection string key %q", key)
		}
	}

	cfg.Addr = host + ":" + port
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}
