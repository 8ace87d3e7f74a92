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

package misc

import (
	"crypto/tls"
	"fmt"
	"sync"
)

var (
	tlsConfigLock     sync.RWMutex
	tlsConfigRegistry map[string]*tls.Config
)

// RegisterTLSConfig registers cfg under name so that a DSN or connection
// string can select it via tls=<name>. Reserved names "true", "false",
// "skip-verify" and "preferred" are rejected.
func RegisterTLSConfig(name string, cfg *tls.Config) error {
	switch name {
	case "true", "false", "skip-verify", "preferred":
		return fmt.Errorf("misc: tls config name %q is reserved", name)
	}

	tlsConfigLock.Lock()
	if tlsConfigRegistry == nil {
		tlsConfigRegistry = make(map[string]*tls.Config)
	}
	tlsConfigRegistry[name] = cfg
	tlsConfigLock.Unlock()
	return nil
}

// DeregisterTLSConfig removes a tls.Config registered with RegisterTLSConfig.
func DeregisterTLSConfig(name string) {
	tlsConfigLock.Lock()
	if tlsConfigRegistry != nil {
		delete(tlsConfigRegistry, name)
	}
	tlsConfigLock.Unlock()
}

// GetTLSConfigClone returns a clone of the tls.Config registered under name,
// or nil if no config was registered under that name.
func GetTLSConfigClone(name string) *tls.Config {
	tlsConfigLock.RLock()
	cfg, ok := tlsConfigRegistry[name]
	tlsConfigLock.RUnlock()
	if !ok {
		return nil
	}
	return cfg.Clone()
}
