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

package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-dbpack/dbpack/pkg/proto"
)

func TestResultImplementsProtoResult(t *testing.T) {
	var _ proto.Result = &Result{}

	res := &Result{AffectedRows: 3, InsertId: 42}
	affected, err := res.RowsAffected()
	assert.NoError(t, err)
	assert.EqualValues(t, 3, affected)

	id, err := res.LastInsertId()
	assert.NoError(t, err)
	assert.EqualValues(t, 42, id)
}
