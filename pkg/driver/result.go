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

import "github.com/go-dbpack/dbpack/pkg/mysql"

// QueryResult is what ReadQueryResult hands back: either an OK-packet
// outcome (Result set, Fields/Rows nil) or a result set (Fields/Rows set,
// Result nil). mysql.Result itself only models the OK-packet shape, so the
// two are composed here rather than folding result-set fields back onto it.
type QueryResult struct {
	Result *mysql.Result
	Fields []*mysql.Field
	Rows   *mysql.Rows
}

// HasResultSet reports whether the command produced rows rather than an
// OK-packet outcome.
func (qr *QueryResult) HasResultSet() bool {
	return qr.Rows != nil
}
