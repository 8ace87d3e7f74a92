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

package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLErrorMessage(t *testing.T) {
	err := NewSQLError(1045, "28000", "Access denied for user %q", "root")
	assert.Equal(t, `mysql: error 1045 (28000): Access denied for user "root"`, err.Error())
}

func TestSQLErrorWithoutState(t *testing.T) {
	err := NewSQLError(2013, "", "lost connection to server")
	assert.Equal(t, "mysql: error 2013: lost connection to server", err.Error())
}

func TestTransportErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewTransportError(cause)
	assert.ErrorIs(t, err, cause)
}

func TestAuthErrorEmbedsSQLError(t *testing.T) {
	err := NewAuthError(1045, "28000", "Access denied")
	assert.Equal(t, 1045, err.Code)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewTransportError(errors.New("boom"))))
	assert.True(t, IsFatal(NewProtocolError("bad packet")))
	assert.False(t, IsFatal(&NotPreparedError{StatementID: 1}))
	assert.False(t, IsFatal(NewSQLError(1062, "23000", "duplicate entry")))
}
